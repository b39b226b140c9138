package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

type fakeChat struct {
	reply contractx.ChatReply
	err   error
	reqs  []contractx.ChatRequest
}

func (f *fakeChat) HandleMessage(ctx context.Context, req contractx.ChatRequest) (contractx.ChatReply, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return contractx.ChatReply{}, f.err
	}
	reply := f.reply
	reply.SessionID = req.SessionID
	return reply, nil
}

type fakeBuilder struct {
	status string
	err    error
}

func (f *fakeBuilder) Build(ctx context.Context) (string, error) {
	return f.status, f.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v body=%s", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealthAndRoot(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeChat{}, &fakeBuilder{})

	rec, out := doRequest(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", rec.Code, out)
	}

	rec, out = doRequest(t, s, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || out["status"] != "running" || out["version"] != AppVersion {
		t.Fatalf("unexpected root response: %d %v", rec.Code, out)
	}
}

func TestChatUsesHeaderSessionID(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: contractx.ChatReply{Text: "Hello!", Success: true}}
	s := NewServer(chat, nil)

	_, out := doRequest(t, s, http.MethodPost, "/chat",
		`{"user_query":"hi","session_id":"body-id","provider":"groq"}`,
		map[string]string{HeaderSessionID: "header-id"})

	if out["response"] != "Hello!" || out["success"] != true || out["session_id"] != "header-id" {
		t.Fatalf("unexpected chat response: %v", out)
	}
	if len(chat.reqs) != 1 {
		t.Fatalf("expected one chat request, got %d", len(chat.reqs))
	}
	got := chat.reqs[0]
	if got.SessionID != "header-id" || got.Text != "hi" || got.Scope != contractx.ScopeGeneral || got.Provider != contractx.ProviderGroq {
		t.Fatalf("unexpected forwarded request: %+v", got)
	}
}

func TestChatIssuesSessionID(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: contractx.ChatReply{Text: "ok", Success: true}}
	s := NewServer(chat, nil)
	s.newID = func() string { return "generated-id" }

	_, out := doRequest(t, s, http.MethodPost, "/chat", `{"user_query":"hi"}`, nil)
	if out["session_id"] != "generated-id" {
		t.Fatalf("expected generated session id, got %v", out)
	}

	_, out = doRequest(t, s, http.MethodPost, "/chat", `{"user_query":"hi","session_id":"body-id"}`, nil)
	if out["session_id"] != "body-id" {
		t.Fatalf("expected body session id, got %v", out)
	}
}

func TestChatErrorsKeepStatusOK(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeChat{err: errors.New("message is empty")}, nil)

	rec, out := doRequest(t, s, http.MethodPost, "/chat", `{"user_query":""}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out["response"] != "Error: message is empty" || out["success"] != false {
		t.Fatalf("unexpected error envelope: %v", out)
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	s := NewServer(chat, nil)

	rec, _ := doRequest(t, s, http.MethodPost, "/chat", `{"user_query":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(chat.reqs) != 0 {
		t.Fatalf("malformed body must not reach the pipeline")
	}

	rec, _ = doRequest(t, s, http.MethodGet, "/chat", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /chat, got %d", rec.Code)
	}
}

func TestCreateVectorDB(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, &fakeBuilder{status: "Vector DB generated and saved successfully."})
	_, out := doRequest(t, s, http.MethodPost, "/create_vectorDB", "", nil)
	if out["status"] != "Vector DB generated and saved successfully." {
		t.Fatalf("unexpected status: %v", out)
	}

	s = NewServer(nil, &fakeBuilder{err: errors.New("open catalog: no such file")})
	_, out = doRequest(t, s, http.MethodPost, "/create_vectorDB", "", nil)
	if out["status"] != "Error: open catalog: no such file" {
		t.Fatalf("unexpected error status: %v", out)
	}
}

func TestChatIgnoresBodyScope(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: contractx.ChatReply{Text: "ok", Success: true}}
	s := NewServer(chat, nil, WithStaffToken("secret"))

	doRequest(t, s, http.MethodPost, "/chat", `{"user_query":"restock report","scope":"staff"}`, nil)
	if len(chat.reqs) != 1 || chat.reqs[0].Scope != contractx.ScopeGeneral {
		t.Fatalf("body scope must not raise privileges: %+v", chat.reqs)
	}
}

func TestStaffChatRequiresToken(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: contractx.ChatReply{Text: "ok", Success: true}}
	s := NewServer(chat, nil, WithStaffToken("secret"))

	rec, _ := doRequest(t, s, http.MethodPost, "/staff/chat", `{"user_query":"hi"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodPost, "/staff/chat", `{"user_query":"hi"}`,
		map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if len(chat.reqs) != 0 {
		t.Fatalf("unauthorized staff requests must not reach the pipeline")
	}

	_, out := doRequest(t, s, http.MethodPost, "/staff/chat", `{"user_query":"hi"}`,
		map[string]string{"Authorization": "Bearer secret"})
	if out["success"] != true || len(chat.reqs) != 1 || chat.reqs[0].Scope != contractx.ScopeStaff {
		t.Fatalf("expected staff scope with valid token: %v %+v", out, chat.reqs)
	}
}

func TestStaffChatDisabledWithoutToken(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeChat{}, nil)
	rec, _ := doRequest(t, s, http.MethodPost, "/staff/chat", `{"user_query":"hi"}`,
		map[string]string{"Authorization": "Bearer "})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when staff route is disabled, got %d", rec.Code)
	}
}

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	nodex "github.com/tanpawarit/chative-shop-assistant/agent/nodes"
	promptx "github.com/tanpawarit/chative-shop-assistant/agent/prompt"
	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
	toolx "github.com/tanpawarit/chative-shop-assistant/agent/tool"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	MaxRounds       int
	DefaultProvider contractx.Provider
	DefaultScope    contractx.Scope
}

type Orchestrator struct {
	store    statex.Store
	gateway  contractx.ModelGateway
	registry *toolx.Registry
	renderer *promptx.Renderer

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	locks       *sessionLocks

	defaults  nodex.Defaults
	maxRounds int

	now func() time.Time
}

func New(
	store statex.Store,
	gateway contractx.ModelGateway,
	registry *toolx.Registry,
	renderer *promptx.Renderer,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if gateway == nil {
		return nil, errors.New("model gateway is required")
	}
	if registry == nil {
		return nil, errors.New("capability registry is required")
	}
	if renderer == nil {
		var err error
		if renderer, err = promptx.NewRenderer(promptx.LoadPromptSet()); err != nil {
			return nil, err
		}
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = nodex.DefaultMaxRounds
	}
	provider := contractx.Provider(strings.TrimSpace(string(cfg.DefaultProvider)))
	if provider == "" {
		provider = contractx.ProviderOpenAI
	}
	scope := contractx.Scope(strings.TrimSpace(string(cfg.DefaultScope)))
	if scope == "" {
		scope = contractx.ScopeGeneral
	}

	o := &Orchestrator{
		store:     store,
		gateway:   gateway,
		registry:  registry,
		renderer:  renderer,
		locks:     newSessionLocks(),
		defaults:  nodex.Defaults{Provider: provider, Scope: scope},
		maxRounds: maxRounds,
		now:       time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one user utterance through the pipeline. Backend
// failures come back as a reply with Success false and a nil error; the
// error is reserved for invalid requests and storage failures.
func (o *Orchestrator) HandleMessage(ctx context.Context, req contractx.ChatRequest) (contractx.ChatReply, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return contractx.ChatReply{}, ErrInvalidSession
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	start := o.now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      req.Text,
		Provider:  req.Provider,
		Scope:     req.Scope,
	})
	if err != nil {
		return contractx.ChatReply{SessionID: sessionID}, err
	}

	log.Info().
		Str("session_id", sessionID).
		Bool("success", out.Success).
		Bool("degraded", out.Degraded).
		Int("rounds", out.Rounds).
		Dur("elapsed", o.now().Sub(start)).
		Msg("chat message handled")

	return contractx.ChatReply{
		SessionID: sessionID,
		Text:      out.Reply,
		Success:   out.Success,
		Degraded:  out.Degraded,
		Rounds:    out.Rounds,
	}, nil
}

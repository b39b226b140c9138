package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

const (
	VarUserQuery        = "user_query"
	VarFormattedHistory = "formatted_history"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/chat.txt
	chatRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System string
	Chat   string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		System: strings.TrimSpace(systemRaw),
		Chat:   strings.TrimSpace(chatRaw),
	}
}

// Renderer turns a user query and formatted history into the provider
// messages of the first gateway call.
type Renderer struct {
	template einoprompt.ChatTemplate
}

func NewRenderer(set PromptSet) (*Renderer, error) {
	if strings.TrimSpace(set.System) == "" {
		return nil, fmt.Errorf("%w: system prompt", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(set.Chat) == "" {
		return nil, fmt.Errorf("%w: chat prompt", contractx.ErrPromptMissing)
	}
	return &Renderer{
		template: einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(set.System),
			schema.UserMessage(set.Chat),
		),
	}, nil
}

func (r *Renderer) Render(ctx context.Context, userQuery, formattedHistory string) ([]*schema.Message, error) {
	msgs, err := r.template.Format(ctx, map[string]any{
		VarUserQuery:        userQuery,
		VarFormattedHistory: formattedHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: render chat prompt: %v", contractx.ErrValidation, err)
	}
	return msgs, nil
}

// FormatHistory renders turns as "role: content" lines.
func FormatHistory(turns []contractx.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

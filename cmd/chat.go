package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	"github.com/tanpawarit/chative-shop-assistant/api"
)

type chatOptions struct {
	sessionID string
	provider  string
	scope     string
}

func chatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.sessionID == "" {
				opts.sessionID = uuid.NewString()
			}
			return runChat(cmd, a.orch, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id to continue (a new one is issued when empty)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "model provider: openai or groq")
	cmd.Flags().StringVar(&opts.scope, "scope", "", "capability scope: general or staff")
	return cmd
}

// runChat reads one utterance per line until EOF or "exit".
func runChat(cmd *cobra.Command, h api.ChatHandler, opts chatOptions) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "session %s (type \"exit\" to quit)\n", opts.sessionID)
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}

		line := strings.TrimSpace(in.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := h.HandleMessage(cmd.Context(), contractx.ChatRequest{
			SessionID: opts.sessionID,
			Text:      line,
			Provider:  contractx.Provider(opts.provider),
			Scope:     contractx.Scope(opts.scope),
		})
		if err != nil {
			printReply(out, "Error: "+err.Error())
			continue
		}
		printReply(out, reply.Text)
	}
}

func printReply(w io.Writer, text string) {
	fmt.Fprintf(w, "assistant: %s\n", text)
}

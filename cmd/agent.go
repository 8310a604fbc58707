package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatherinfo/tui/progress"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errNoAgent = errors.New("agent unavailable: no tool calling model configured")

func agentCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "agent <prompt>",
		Short: "Let the model search, fetch and gather on its own to answer a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			a, err := newApp(cmd.Context(), cfgPath, appOptions{quiet: !plain})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.agent == nil {
				return errNoAgent
			}

			id := uuid.NewString()
			if plain {
				answer, err := a.agent.Run(cmd.Context(), prompt, a.runSink(id))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"answer": answer})
			}

			sink := a.relay.Sink(id)
			model := progress.New(cmd.Context(), a.relay, id, prompt, func(ctx context.Context) (string, error) {
				defer a.relay.Finish(id)
				return a.agent.Run(ctx, prompt, sink)
			})
			final, err := tea.NewProgram(model, tea.WithOutput(cmd.OutOrStdout())).Run()
			if err != nil {
				return fmt.Errorf("run progress view: %w", err)
			}
			if m, ok := final.(progress.Model); ok {
				_, err = m.Answer()
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the answer as JSON instead of the progress view")
	return cmd
}

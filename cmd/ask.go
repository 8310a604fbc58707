package cmd

import (
	"context"
	"fmt"
	"strings"

	"gatherinfo/tui/progress"
	"gatherinfo/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	var (
		plain bool
		opts  workflow.Options
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Research a question on the web and answer it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			a, err := newApp(cmd.Context(), cfgPath, appOptions{quiet: !plain})
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.NewString()
			if plain {
				res, err := a.gatherer.Gather(cmd.Context(), prompt, opts, a.runSink(id))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			sink := a.relay.Sink(id)
			model := progress.New(cmd.Context(), a.relay, id, prompt, func(ctx context.Context) (string, error) {
				defer a.relay.Finish(id)
				res, err := a.gatherer.Gather(ctx, prompt, opts, sink)
				if err != nil {
					return "", err
				}
				return res.Answer, nil
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
	cmd.Flags().BoolVar(&plain, "plain", false, "print the result as JSON instead of the progress view")
	cmd.Flags().IntVar(&opts.MaxSearchResults, "max-results", 0, "search results to consider (default from workflow.max_search_results)")
	cmd.Flags().IntVar(&opts.MaxDocsToDownload, "max-docs", 0, "pages to download (default from workflow.max_docs_to_download)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "download pages again even when already stored")
	return cmd
}

package cmd

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var summarize bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := newApp(cmd.Context(), cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if summarize {
				answer, err := a.summarizer.SearchToAI(cmd.Context(), query, nil, a.runSink(uuid.NewString()))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"answer": answer})
			}

			results, err := a.searcher.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"results": results})
		},
	}
	cmd.Flags().BoolVar(&summarize, "summarize", false, "summarize the result titles with the LLM")
	return cmd
}

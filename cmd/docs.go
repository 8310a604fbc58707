package cmd

import (
	"strings"

	"gatherinfo/llm/retriever"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Download pages, convert them to Markdown and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			sink := a.runSink(uuid.NewString())
			var failed int
			out := make([]any, 0, len(args))
			for _, u := range args {
				saved, err := a.downloader.Download(cmd.Context(), u, force, sink)
				if err != nil {
					failed++
					out = append(out, map[string]string{"url": u, "error": err.Error()})
					continue
				}
				out = append(out, saved)
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if failed == len(args) {
				return errAllFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "fetch again even when the page is already stored")
	return cmd
}

func retrieveCmd() *cobra.Command {
	var minScore, maxFiles int
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Rank the stored documents against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			var opts retriever.Options
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = retriever.Int(minScore)
			}
			if cmd.Flags().Changed("max-files") {
				opts.MaxFiles = retriever.Int(maxFiles)
			}

			results, outcome, err := a.retriever.Retrieve(cmd.Context(), strings.Join(args, " "), opts, a.runSink(uuid.NewString()))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"results": results, "outcome": outcome})
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", 0, "drop documents scoring below this")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "keep at most this many documents")
	return cmd
}

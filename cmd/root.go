// Package cmd is the command line interface: the HTTP server and one
// command per workflow step.
package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var errAllFailed = errors.New("every download failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatherinfo",
		Short:         "Search the web, keep the pages and answer questions from them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(
		serveCmd(),
		askCmd(),
		searchCmd(),
		fetchCmd(),
		retrieveCmd(),
		toolsCmd(),
		agentCmd(),
	)
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

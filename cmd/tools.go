package cmd

import (
	"context"
	"fmt"
	"io"

	"gatherinfo/llm/tools"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the agent tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.toolset(nil).Tools()
			if err != nil {
				return err
			}
			return listTools(cmd.Context(), cmd.OutOrStdout(), list)
		},
	}
	cmd.AddCommand(toolCallCmd())
	return cmd
}

func toolCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <name> <json-arguments>",
		Short: "Invoke one tool the way an agent would",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.toolset(a.runSink(uuid.NewString())).Tools()
			if err != nil {
				return err
			}
			out, err := callTool(cmd.Context(), list, args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func listTools(ctx context.Context, w io.Writer, list []tool.BaseTool) error {
	for _, t := range list {
		info, err := t.Info(ctx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", info.Name, info.Desc); err != nil {
			return err
		}
	}
	return nil
}

// callTool runs the named tool behind the error middleware, so failures come
// back as "Error: ..." text just as an agent would see them.
func callTool(ctx context.Context, list []tool.BaseTool, name, arguments string) (string, error) {
	for _, t := range list {
		info, err := t.Info(ctx)
		if err != nil {
			return "", err
		}
		if info.Name != name {
			continue
		}
		it, ok := t.(tool.InvokableTool)
		if !ok {
			return "", fmt.Errorf("tool %q is not invokable", name)
		}
		endpoint := tools.ErrorHandler().Invokable(func(ctx context.Context, _ *compose.ToolInput) (*compose.ToolOutput, error) {
			out, err := it.InvokableRun(ctx, arguments)
			if err != nil {
				return nil, err
			}
			return &compose.ToolOutput{Result: out}, nil
		})
		out, err := endpoint(ctx, &compose.ToolInput{})
		if err != nil {
			return "", err
		}
		return out.Result, nil
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

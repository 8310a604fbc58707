// Package tools exposes the search, fetch and gather operations as eino
// tools for agent runtimes.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
)

// ResultStatus represents the status of a tool execution
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusPartial ResultStatus = "partial"
)

// Metadata contains structured metadata about tool execution
type Metadata struct {
	URL      string   `json:"url,omitempty"`
	Path     string   `json:"path,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Count    int      `json:"count,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Duration int64    `json:"duration_ms,omitempty"`
}

// ToolResult represents a structured tool response
type ToolResult struct {
	Status   ResultStatus `json:"status"`
	Content  string       `json:"content"`
	Metadata *Metadata    `json:"metadata,omitempty"`
}

// String renders the result for the model: a status marker, the content and
// the metadata as one XML-like element.
func (r *ToolResult) String() string {
	var sb strings.Builder

	switch r.Status {
	case StatusError:
		sb.WriteString("[ERROR] ")
	case StatusPartial:
		sb.WriteString("[PARTIAL] ")
	}
	sb.WriteString(r.Content)

	if md := r.Metadata; md != nil {
		var attrs []string
		if md.URL != "" {
			attrs = append(attrs, "url="+md.URL)
		}
		if md.Path != "" {
			attrs = append(attrs, "path="+md.Path)
		}
		if md.Skipped {
			attrs = append(attrs, "cached=true")
		}
		if md.Count > 0 {
			attrs = append(attrs, fmt.Sprintf("count=%d", md.Count))
		}
		if len(md.Sources) > 0 {
			attrs = append(attrs, fmt.Sprintf("sources=%q", strings.Join(md.Sources, ",")))
		}
		if md.Duration > 0 {
			attrs = append(attrs, fmt.Sprintf("duration=%dms", md.Duration))
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&sb, "\n\n<metadata %s />", strings.Join(attrs, " "))
		}
	}
	return sb.String()
}

// JSON returns the JSON representation (for debugging/logging)
func (r *ToolResult) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

func Success(content string, metadata *Metadata) (string, error) {
	return (&ToolResult{Status: StatusSuccess, Content: content, Metadata: metadata}).String(), nil
}

// Error reports a failure to the model as a normal tool result.
func Error(content string) (string, error) {
	return (&ToolResult{Status: StatusError, Content: content}).String(), nil
}

func Partial(content string, metadata *Metadata) (string, error) {
	return (&ToolResult{Status: StatusPartial, Content: content, Metadata: metadata}).String(), nil
}

// ErrorHandler turns tool errors into "Error: ..." results so the agent can
// keep going. Interrupts pass through untouched.
func ErrorHandler() compose.ToolMiddleware {
	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
				output, err := next(ctx, in)
				if err == nil {
					return output, nil
				}
				errStr := err.Error()
				if strings.Contains(errStr, "interrupt signal") {
					return nil, err
				}
				if idx := strings.Index(errStr, "err="); idx != -1 {
					errStr = strings.TrimSpace(errStr[idx+4:])
				}
				return &compose.ToolOutput{Result: "Error: " + errStr}, nil
			}
		},
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts ...CallOption) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return f(ctx, prompt, opts...)
}

// CallOptions tune one completion. Providers read Model and Temperature,
// the resilient client reads the retry budget. Nil means "use the default".
type CallOptions struct {
	MaxRetries  *int
	BaseDelay   *time.Duration
	Model       string
	Temperature *float32
}

type CallOption func(*CallOptions)

func WithMaxRetries(n int) CallOption {
	return func(o *CallOptions) { o.MaxRetries = &n }
}

func WithBaseDelay(d time.Duration) CallOption {
	return func(o *CallOptions) { o.BaseDelay = &d }
}

func WithModel(name string) CallOption {
	return func(o *CallOptions) { o.Model = name }
}

func WithTemperature(t float32) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

func ApplyOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// StatusError is a provider failure normalized once at the network boundary.
// Code is the HTTP status (0 when unknown), Status a gRPC style or reason
// string such as "RESOURCE_EXHAUSTED".
type StatusError struct {
	Code   int
	Status string
	Err    error
}

func (e *StatusError) Error() string {
	switch {
	case e.Code != 0 && e.Status != "":
		return fmt.Sprintf("completion failed (%d %s): %v", e.Code, e.Status, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("completion failed (%d): %v", e.Code, e.Err)
	case e.Status != "":
		return fmt.Sprintf("completion failed (%s): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

var retryableCodes = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

var retryableStatuses = []string{
	"UNAVAILABLE",
	"RESOURCE_EXHAUSTED",
	"RATE_LIMIT_EXCEEDED",
	"TOO_MANY_REQUESTS",
	"ABORTED",
}

// Retryable reports whether err carries a transient StatusError.
func Retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if retryableCodes[se.Code] {
		return true
	}
	status := strings.ToUpper(strings.ReplaceAll(se.Status, " ", "_"))
	for _, s := range retryableStatuses {
		if strings.Contains(status, s) {
			return true
		}
	}
	return false
}

package llm

import (
	"context"
	"errors"
	"time"

	"gatherinfo/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond

	jitter = 0.2
)

// Resilient retries transient completion failures with exponential backoff.
// Attempt n (from 0) that fails with a retryable error waits
// baseDelay * 2^n * [0.8, 1.2] before the next one. Anything else, or the
// last failure once the budget is spent, is returned unchanged.
type Resilient struct {
	next     Completer
	defaults CallOptions
	logger   *zap.Logger

	// nil uses the real clock
	newTimer func() backoff.Timer
}

// NewResilient wraps next. defaults set the budget for calls that do not
// override it.
func NewResilient(next Completer, logger *zap.Logger, defaults ...CallOption) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{
		next:     next,
		defaults: ApplyOptions(defaults...),
		logger:   logger,
	}
}

func (r *Resilient) budget(opts []CallOption) (int, time.Duration) {
	maxRetries, baseDelay := DefaultMaxRetries, DefaultBaseDelay
	if r.defaults.MaxRetries != nil {
		maxRetries = *r.defaults.MaxRetries
	}
	if r.defaults.BaseDelay != nil {
		baseDelay = *r.defaults.BaseDelay
	}
	call := ApplyOptions(opts...)
	if call.MaxRetries != nil {
		maxRetries = *call.MaxRetries
	}
	if call.BaseDelay != nil {
		baseDelay = *call.BaseDelay
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return maxRetries, baseDelay
}

func (r *Resilient) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	maxRetries, baseDelay := r.budget(opts)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.RandomizationFactor = jitter
	policy.Multiplier = 2
	policy.MaxInterval = baseDelay << 20
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx)

	forward := append(r.forwarded(), opts...)
	attempt := 0
	op := func() (string, error) {
		attempt++
		text, err := r.next.Complete(ctx, prompt, forward...)
		if err == nil {
			metrics.CompletionAttempts.WithLabelValues("ok").Inc()
			return text, nil
		}
		if !Retryable(err) {
			metrics.CompletionAttempts.WithLabelValues("error").Inc()
			return "", backoff.Permanent(err)
		}
		metrics.CompletionAttempts.WithLabelValues("transient").Inc()
		return "", err
	}
	notify := func(err error, wait time.Duration) {
		metrics.CompletionRetries.Inc()
		r.logger.Warn("completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}
	text, err := backoff.RetryNotifyWithTimerAndData(op, b, notify, timer)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			r.logger.Error("completion failed",
				zap.Int("attempts", attempt),
				zap.Int("code", se.Code),
				zap.String("status", se.Status),
				zap.Error(err))
		}
		return "", err
	}
	return text, nil
}

// forwarded passes default model settings down to the provider.
func (r *Resilient) forwarded() []CallOption {
	var out []CallOption
	if r.defaults.Model != "" {
		out = append(out, WithModel(r.defaults.Model))
	}
	if r.defaults.Temperature != nil {
		out = append(out, WithTemperature(*r.defaults.Temperature))
	}
	return out
}

package disambiguate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/toporag/internal/model"
)

// Judge is the single judgment call
type Judge interface {
	Judge(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error)
}

// JudgeFunc adapts a function to the Judge interface
type JudgeFunc func(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error)

// Judge calls f
func (f JudgeFunc) Judge(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
	return f(ctx, req)
}

// ErrAttemptsExhausted is returned when every attempt failed
var ErrAttemptsExhausted = errors.New("judgment attempts exhausted")

// RetryConfig bounds the retry wrapper
type RetryConfig struct {
	MaxRetries int           // Additional attempts after the first
	Backoff    time.Duration // Delay before the first retry, doubled after each
	Timeout    time.Duration // Per-attempt deadline; 0 disables
}

// DefaultRetryConfig returns one attempt plus two retries
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, Backoff: time.Second, Timeout: 60 * time.Second}
}

// RetryingJudge retries a judge on malformed answers, per-attempt timeouts
// and transport errors, always with the same request
type RetryingJudge struct {
	next   Judge
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewRetryingJudge wraps next
func NewRetryingJudge(next Judge, config RetryConfig, logger *slog.Logger) *RetryingJudge {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingJudge{next: next, config: config, sleep: sleepContext, logger: logger}
}

// Judge implements Judge
func (r *RetryingJudge) Judge(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
	j, _, err := r.Do(ctx, req)
	return j, err
}

// Do runs the attempts and reports how many were made. Cancellation of ctx
// stops immediately with ctx's error; exhausting attempts returns an error
// wrapping ErrAttemptsExhausted and the last failure.
func (r *RetryingJudge) Do(ctx context.Context, req model.JudgmentRequest) (model.Judgment, int, error) {
	attempts := r.config.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := r.config.Backoff << (attempt - 2)
			if err := r.sleep(ctx, delay); err != nil {
				return model.Judgment{}, attempt - 1, err
			}
		}

		j, err := r.once(ctx, req)
		if err == nil {
			return j, attempt, nil
		}
		if ctx.Err() != nil {
			return model.Judgment{}, attempt, ctx.Err()
		}

		lastErr = err
		attrs := []any{"toponym", req.Toponym, "attempt", attempt, "max_attempts", attempts, "error", err}
		if errors.Is(err, model.ErrMalformedJudgment) {
			attrs = append(attrs, "raw", j.Raw)
		}
		r.logger.Warn("judgment attempt failed", attrs...)
	}

	return model.Judgment{}, attempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

func (r *RetryingJudge) once(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
	if r.config.Timeout <= 0 {
		return r.next.Judge(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	return r.next.Judge(callCtx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

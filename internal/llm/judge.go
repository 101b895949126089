package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/toporag/internal/model"
)

// RateLimiter throttles calls per key
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// Judge turns a judgment request into a prompt, calls the provider and parses the answer
type Judge struct {
	provider Provider
	limiter  RateLimiter
	logger   *slog.Logger
}

// NewJudge creates a judge; limiter may be nil
func NewJudge(provider Provider, limiter RateLimiter, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{provider: provider, limiter: limiter, logger: logger}
}

// Name returns the underlying provider name
func (j *Judge) Name() string {
	return j.provider.Name()
}

// Judge performs one judgment call. A malformed answer returns an error
// wrapping model.ErrMalformedJudgment and the raw text in the judgment.
func (j *Judge) Judge(ctx context.Context, req model.JudgmentRequest) (model.Judgment, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx, j.provider.Name()); err != nil {
			return model.Judgment{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := j.provider.Complete(ctx, CompletionRequest{
		System: SystemPrompt,
		Prompt: BuildPrompt(req),
		JSON:   true,
	})
	if err != nil {
		return model.Judgment{}, err
	}

	judgment, err := ParseJudgment(resp.Text)
	if err != nil {
		return model.Judgment{Raw: resp.Text}, err
	}

	j.logger.Debug("judgment received",
		"provider", j.provider.Name(),
		"model", resp.Model,
		"toponym", req.Toponym,
		"confidence", judgment.Confidence.String(),
		"tokens", resp.TokensUsed,
	)
	return judgment, nil
}

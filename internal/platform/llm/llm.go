// Package llm defines the text-completion capability used to answer
// clinical questions, independent of the hosting provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one completion call.
type Request struct {
	Instructions    string
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
}

// Completer produces text from a prompt, either in one piece or as a
// sequence of fragments.
type Completer interface {
	// Complete returns the full completion text.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls onDelta for every fragment in arrival order. An error
	// returned by onDelta aborts the stream and is returned unchanged.
	Stream(ctx context.Context, req Request, onDelta func(delta string) error) error
	// Model is the deployment or model identifier reported to clients.
	Model() string
}

type limited struct {
	next    Completer
	limiter *rate.Limiter
}

// WithRateLimit bounds the call rate of c across all requests. A
// non-positive rps returns c unchanged.
func WithRateLimit(c Completer, rps float64, burst int) Completer {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{next: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limited) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return l.next.Complete(ctx, req)
}

func (l *limited) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limit: %w", err)
	}
	return l.next.Stream(ctx, req, onDelta)
}

func (l *limited) Model() string { return l.next.Model() }

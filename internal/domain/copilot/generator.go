package copilot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/patient360/api/internal/platform/llm"
)

const (
	hostedMaxOutputTokens = 1000
	hostedTemperature     = 0.3
	wordsPerDelta         = 3
)

// Generator turns a question and its sources into an answer.
type Generator interface {
	Generate(ctx context.Context, q Question) (*Answer, error)
	// Stream calls onDelta with consecutive fragments of the answer text.
	// An error from onDelta stops generation and is returned unchanged.
	Stream(ctx context.Context, q Question, onDelta func(delta string) error) (*Answer, error)
}

// TemplateGenerator answers offline from keyword-selected templates.
type TemplateGenerator struct {
	delay time.Duration
}

func NewTemplateGenerator(delay time.Duration) *TemplateGenerator {
	return &TemplateGenerator{delay: delay}
}

func (g *TemplateGenerator) Generate(_ context.Context, q Question) (*Answer, error) {
	_, text, actions := RenderTemplate(q)
	return &Answer{Text: text, NextActions: actions}, nil
}

// Stream replays the rendered answer in word groups with a fixed delay
// between them.
func (g *TemplateGenerator) Stream(ctx context.Context, q Question, onDelta func(string) error) (*Answer, error) {
	ans, _ := g.Generate(ctx, q)
	for i, chunk := range ChunkWords(ans.Text, wordsPerDelta) {
		if i > 0 && g.delay > 0 {
			if err := wait(ctx, g.delay); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}
	return ans, nil
}

// ChunkWords splits text on whitespace into groups of n words, each joined
// by single spaces and followed by one trailing space.
func ChunkWords(text string, n int) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+n-1)/n)
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " ")+" ")
	}
	return chunks
}

// HostedGenerator answers with a hosted model. Non-streaming failures fall
// back to the template answer; streaming failures are returned.
type HostedGenerator struct {
	completer llm.Completer
	fallback  Generator
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewHostedGenerator(c llm.Completer, fallback Generator, timeout time.Duration, logger zerolog.Logger) *HostedGenerator {
	return &HostedGenerator{completer: c, fallback: fallback, timeout: timeout, logger: logger}
}

func (g *HostedGenerator) request(q Question) llm.Request {
	_, prompt := BuildPrompt(q.Text, q.PatientName, q.Sources)
	return llm.Request{
		Instructions:    SystemInstructions,
		Prompt:          prompt,
		MaxOutputTokens: hostedMaxOutputTokens,
		Temperature:     hostedTemperature,
	}
}

func (g *HostedGenerator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *HostedGenerator) Generate(ctx context.Context, q Question) (*Answer, error) {
	cctx, cancel := g.withTimeout(ctx)
	defer cancel()

	text, err := g.completer.Complete(cctx, g.request(q))
	if err != nil {
		g.logger.Error().Err(err).
			Str("patient_id", q.PatientID).
			Str("model", g.completer.Model()).
			Str("question", truncate(q.Text, 50)).
			Msg("hosted generation failed, falling back to template answer")
		return g.fallback.Generate(ctx, q)
	}

	parsed := ParseResponse(text)
	model := g.completer.Model()
	return &Answer{Text: parsed.Answer, NextActions: parsed.NextActions, Model: &model}, nil
}

// Stream forwards fragments as they arrive and keeps only the accumulated
// text for parsing at the end. A stream with no text is an error.
func (g *HostedGenerator) Stream(ctx context.Context, q Question, onDelta func(string) error) (*Answer, error) {
	cctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var full strings.Builder
	err := g.completer.Stream(cctx, g.request(q), func(d string) error {
		full.WriteString(d)
		return onDelta(d)
	})
	if err != nil {
		return nil, err
	}
	if full.Len() == 0 {
		return nil, llm.ErrEmptyResponse
	}

	parsed := ParseResponse(full.String())
	model := g.completer.Model()
	return &Answer{Text: parsed.Answer, NextActions: parsed.NextActions, Model: &model}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package gemini adapts the Google Gen AI SDK to llm.Completer.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/patient360/api/internal/platform/llm"
)

var _ llm.Completer = (*Client)(nil)

type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
	Model   string
}

// Client is a thin wrapper around genai.Client bound to one model.
type Client struct {
	cli   *genai.Client
	model string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{cli: cli, model: cfg.Model}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, c.model, contents(req), generateConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) error {
	for resp, err := range c.cli.Models.GenerateContentStream(ctx, c.model, contents(req), generateConfig(req)) {
		if err != nil {
			return fmt.Errorf("gemini: stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			if err := onDelta(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func contents(req llm.Request) []*genai.Content {
	return []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
}

func generateConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instructions}}}
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

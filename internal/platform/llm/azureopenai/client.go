// Package azureopenai calls the Azure OpenAI Responses API.
package azureopenai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patient360/api/internal/platform/llm"
)

var _ llm.Completer = (*Client)(nil)

// DefaultTimeout bounds a whole non-streaming call.
const DefaultTimeout = 120 * time.Second

// Config holds the connection settings for one chat deployment.
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	// HTTPClient overrides the default client. Streaming calls should not
	// use a client with a total Timeout.
	HTTPClient *http.Client
}

// Client talks to {endpoint}/openai/v1/responses.
type Client struct {
	http       *http.Client
	url        string
	apiKey     string
	deployment string
}

type responsesRequest struct {
	Model           string   `json:"model"`
	Instructions    string   `json:"instructions,omitempty"`
	Input           string   `json:"input"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Stream          bool     `json:"stream,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type responsesResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *apiError `json:"error,omitempty"`
}

// streamEvent covers the event types the client acts on.
type streamEvent struct {
	Type     string             `json:"type"`
	Delta    string             `json:"delta"`
	Message  string             `json:"message"`
	Response *responsesResponse `json:"response,omitempty"`
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azureopenai: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azureopenai: API key is required")
	}
	if cfg.Deployment == "" {
		return nil, errors.New("azureopenai: deployment is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http:       hc,
		url:        strings.TrimRight(cfg.Endpoint, "/") + "/openai/v1/responses",
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
	}, nil
}

func (c *Client) Model() string { return c.deployment }

// Complete returns the concatenated output_text of the response.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("azureopenai: read response: %w", err)
	}

	var out responsesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("azureopenai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("azureopenai: %s", out.Error.Message)
	}

	text := out.outputText()
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// Stream forwards every response.output_text.delta event to onDelta.
func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) error {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("azureopenai: decode stream event: %w", err)
		}
		switch ev.Type {
		case "response.output_text.delta":
			if ev.Delta == "" {
				continue
			}
			if err := onDelta(ev.Delta); err != nil {
				return err
			}
		case "error":
			return fmt.Errorf("azureopenai: stream error: %s", ev.Message)
		case "response.failed", "response.incomplete":
			msg := ev.Type
			if ev.Response != nil && ev.Response.Error != nil {
				msg = ev.Response.Error.Message
			}
			return fmt.Errorf("azureopenai: %s", msg)
		case "response.completed":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("azureopenai: read stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req llm.Request, stream bool) (*http.Response, error) {
	body := responsesRequest{
		Model:           c.deployment,
		Instructions:    req.Instructions,
		Input:           req.Prompt,
		MaxOutputTokens: req.MaxOutputTokens,
		Stream:          stream,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("azureopenai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("azureopenai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azureopenai: send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azureopenai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (r *responsesResponse) outputText() string {
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "" && item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

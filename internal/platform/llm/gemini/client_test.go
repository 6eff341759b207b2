package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/patient360/api/internal/platform/llm"
)

func TestNew_RequiresSettings(t *testing.T) {
	if _, err := New(context.Background(), Config{Model: "m"}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := New(context.Background(), Config{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(llm.Request{Instructions: "sys", MaxOutputTokens: 1000, Temperature: 0.3})
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Errorf("expected system instruction, got %+v", cfg.SystemInstruction)
	}
	if cfg.MaxOutputTokens != 1000 {
		t.Errorf("expected 1000 max tokens, got %d", cfg.MaxOutputTokens)
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(0.3) {
		t.Errorf("expected temperature 0.3, got %v", cfg.Temperature)
	}

	empty := generateConfig(llm.Request{})
	if empty.SystemInstruction != nil || empty.Temperature != nil || empty.MaxOutputTokens != 0 {
		t.Errorf("expected zero config, got %+v", empty)
	}
}

func TestContents(t *testing.T) {
	c := contents(llm.Request{Prompt: "hello"})
	if len(c) != 1 || c[0].Role != "user" || c[0].Parts[0].Text != "hello" {
		t.Errorf("unexpected contents %+v", c)
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("expected empty text for nil response, got %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("expected empty text without candidates, got %q", got)
	}

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "ANSWER: "},
				{Text: "ok"},
			}},
		}},
	}
	if got := responseText(resp); got != "ANSWER: ok" {
		t.Errorf("unexpected text %q", got)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func chunk(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
}

func writeChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\r\n\r\n", c)
	}
}

func TestComplete_ReadsCandidateText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected API key header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chunk("ANSWER: fine"))
	})

	got, err := c.Complete(context.Background(), llm.Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ANSWER: fine" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestComplete_EmptyCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[]}`)
	})

	if _, err := c.Complete(context.Background(), llm.Request{Prompt: "p"}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestStream_ForwardsDeltas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeChunks(w, chunk("ANSWER: "), chunk("stable"))
	})

	var got []string
	err := c.Stream(context.Background(), llm.Request{Prompt: "p"}, func(d string) error {
		got = append(got, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, "|") != "ANSWER: |stable" {
		t.Errorf("unexpected deltas %q", got)
	}
}

func TestStream_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	})

	called := false
	err := c.Stream(context.Background(), llm.Request{Prompt: "p"}, func(string) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "gemini: stream") {
		t.Fatalf("expected wrapped stream error, got %v", err)
	}
	if called {
		t.Error("no delta expected on a failed request")
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, chunk("one"), chunk("two"))
	})

	stop := errors.New("client gone")
	calls := 0
	err := c.Stream(context.Background(), llm.Request{Prompt: "p"}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected streaming to stop after first delta, got %d calls", calls)
	}
}

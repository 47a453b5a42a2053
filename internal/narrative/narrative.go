// Package narrative optionally summarizes reconciliation results with an
// LLM. The pipeline always talks to a Generator; when no API key is
// configured the no-op implementation is used so callers never branch on
// whether the feature is enabled.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/birdalert-go/internal/errors"
	"github.com/tphakala/birdalert-go/internal/logging"
	"github.com/tphakala/birdalert-go/internal/reconcile"
)

// Generator produces an optional narrative for the ranked results.
type Generator interface {
	Summarize(ctx context.Context, entries []reconcile.Entry) (string, error)
}

// NoopGenerator is used when narrative enrichment is not configured.
type NoopGenerator struct{}

// Summarize returns an empty narrative without any network traffic.
func (NoopGenerator) Summarize(context.Context, []reconcile.Entry) (string, error) {
	return "", nil
}

const systemPrompt = "You are a helpful assistant that helps birders find new birds to add to their life list. You must be concise and informative and respond in html format."

// Config describes how to reach the chat-completions endpoint.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// OpenAIGenerator asks an OpenAI-compatible chat endpoint which of the new
// birds to seek out first.
type OpenAIGenerator struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewGenerator returns an OpenAIGenerator, or the no-op generator when no
// API key is configured.
func NewGenerator(cfg Config) Generator {
	if cfg.APIKey == "" {
		return NoopGenerator{}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "o4-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIGenerator{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logging.ForService("narrative"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize posts the ranked list to the chat endpoint and returns the
// model's HTML summary.
func (g *OpenAIGenerator) Summarize(ctx context.Context, entries []reconcile.Entry) (string, error) {
	prompt := buildPrompt(entries)

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Newf("failed to marshal chat request: %w", err).
			Category(errors.CategoryIntegration).
			Component("narrative").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Newf("failed to create chat request: %w", err).
			Category(errors.CategoryNetwork).
			Component("narrative").
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errors.Newf("chat request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("endpoint", g.endpoint).
			Component("narrative").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Newf("failed to read chat response: %w", err).
			Category(errors.CategoryNetwork).
			Component("narrative").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		g.log.Error("chat endpoint returned error",
			"status_code", resp.StatusCode,
			"response_preview", previewString(respBody))
		return "", errors.Newf("chat endpoint error (status %d)", resp.StatusCode).
			Category(errors.CategoryIntegration).
			Context("status_code", resp.StatusCode).
			Component("narrative").
			Build()
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.Newf("failed to parse chat response: %w", err).
			Category(errors.CategoryFileParsing).
			Component("narrative").
			Build()
	}
	if len(parsed.Choices) == 0 {
		return "", errors.Newf("chat response contained no choices").
			Category(errors.CategoryIntegration).
			Component("narrative").
			Build()
	}

	g.log.Info("narrative generated", "species", len(entries))
	return parsed.Choices[0].Message.Content, nil
}

func buildPrompt(entries []reconcile.Entry) string {
	var sb strings.Builder
	sb.WriteString("These are nearby birds that are not on my life list, which should I seek out first and why? Also tell me any cool facts about them.\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s (%s) x %s\n", e.CommonName, e.ScientificName, e.Count)
	}
	sb.WriteString("\nPlease provide a summary of the most interesting birds and their locations.")
	return sb.String()
}

func previewString(body []byte) string {
	const max = 300
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

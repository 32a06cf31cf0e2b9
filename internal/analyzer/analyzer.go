// Package analyzer is the optional LLM enrichment boundary. When
// configured, extracted document text is summarized through an
// OpenAI-compatible chat completion endpoint; the summary is advisory and
// never gates the pipeline.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPrompt = "You are a procurement analyst. Summarize the key terms of this Thai government procurement announcement in two sentences."

// maxInputRunes caps the document text sent per request.
const maxInputRunes = 8000

// Config holds the chat endpoint settings.
type Config struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// Enabled reports whether the configuration is complete enough to use.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Model != "" && c.APIKey != ""
}

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize posts text as a user message and returns the first completion.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("analyzer: client is nil")
	}
	if !c.config.Enabled() {
		return "", fmt.Errorf("analyzer: client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.config.Model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt(c.config.SystemPrompt)},
			{"role": "user", "content": truncate(text, maxInputRunes)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analyzer: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("analyzer: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyzer: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("analyzer: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("analyzer: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("analyzer: empty completion")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func prompt(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPrompt
	}
	return p
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

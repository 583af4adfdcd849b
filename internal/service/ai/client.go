// Package ai talks to the OpenAI-compatible response-generation collaborator.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hamdamapp/backend/internal/config"
	"github.com/hamdamapp/backend/internal/model/chat"
	"github.com/hamdamapp/backend/internal/model/profile"
)

// Client issues chat-completion requests, either as an incremental stream or
// as a one-shot blocking exchange.
type Client struct {
	cfg        config.AIConfig
	httpClient *http.Client
}

// NewClient builds a client from the AI configuration.
func NewClient(cfg config.AIConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StreamingEnabled reports whether incremental delivery is configured.
func (c *Client) StreamingEnabled() bool {
	return c.cfg.StreamResponse
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Profile  profile.Context `json:"profile,omitzero"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenStream issues the request with incremental delivery and returns the raw
// response body for the caller to decode. The caller owns closing the body.
func (c *Client) OpenStream(ctx context.Context, history []chat.Turn, prompt string, prof profile.Context) (io.ReadCloser, error) {
	resp, err := c.do(ctx, history, prompt, prof, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Complete performs a single blocking exchange and returns the full reply.
// Used when the transport does not support incremental reads.
func (c *Client) Complete(ctx context.Context, history []chat.Turn, prompt string, prof profile.Context) (string, error) {
	resp, err := c.do(ctx, history, prompt, prof, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response carried no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, history []chat.Turn, prompt string, prof profile.Context, stream bool) (*http.Response, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: BuildSystemPrompt(prof)})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
		Profile:  prof,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

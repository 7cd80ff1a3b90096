package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPBackend calls an OpenAI-compatible chat-completions endpoint. Local
// model servers (LM Studio, llama.cpp server, vLLM) expose the same wire
// shape, so one client covers all of them.
type HTTPBackend struct {
	name     string
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPBackend creates a backend for one endpoint. The client's timeout is
// left to the caller's context; per-dispatch bounds belong to the consensus
// engine, not here.
func NewHTTPBackend(name, endpoint, apiKey, model string) *HTTPBackend {
	return &HTTPBackend{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{},
	}
}

func (b *HTTPBackend) Name() string { return b.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (b *HTTPBackend) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    b.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		// Structured output wants determinism over creativity.
		Temperature: 0,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("generator %s: marshal request: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("generator %s: create request: %w", b.name, err)
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator %s: endpoint returned %d", b.name, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("generator %s: decode response: %w", b.name, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("generator %s: empty choices in response", b.name)
	}
	return chat.Choices[0].Message.Content, nil
}

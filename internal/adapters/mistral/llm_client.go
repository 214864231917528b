package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	agentsCompletionPath = "/v1/agents/completions"
	maxErrorBodyBytes    = 4096
)

// MistralClient is an implementation of the CompletionClient interface using a Mistral agent
type MistralClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	agentID    string
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentRequest struct {
	AgentID  string        `json:"agent_id"`
	Messages []chatMessage `json:"messages"`
}

type agentResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type contentChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewMistralClient creates a new Mistral agents client
func NewMistralClient(
	httpClient *http.Client,
	baseURL string,
	apiKey string,
	agentID string,
	logger *zap.Logger,
) *MistralClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &MistralClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		agentID:    agentID,
		logger:     logger,
	}
}

// Complete sends the prompt as a single user message to the configured agent
func (c *MistralClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(agentRequest{
		AgentID: c.agentID,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+agentsCompletionPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Mistral agents API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("mistral agents API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode Mistral response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("empty response from Mistral")
	}

	content, err := messageText(completion.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Mistral completion received",
		zap.String("id", completion.ID),
		zap.String("model", completion.Model),
		zap.String("finish_reason", completion.Choices[0].FinishReason))

	return content, nil
}

// messageText accepts either a plain string or a list of text chunks
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("mistral response has no message content")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var chunks []contentChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return "", fmt.Errorf("unexpected Mistral message content: %w", err)
	}
	var b strings.Builder
	for _, ch := range chunks {
		if ch.Type == "" || ch.Type == "text" {
			b.WriteString(ch.Text)
		}
	}
	return b.String(), nil
}

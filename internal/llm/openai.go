package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *uint32       `json:"max_tokens,omitempty"`
}

// chatMessage carries either a plain string or a list of content parts
// (for vision requests).
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatChoice struct {
	Index        uint32 `json:"index"`
	Message      struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	return &OpenAIClient{
		client:  &http.Client{},
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body := chatCompletionRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return c.createCompletion(ctx, body)
}

func (c *OpenAIClient) Describe(ctx context.Context, mimeType string, data []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: string(RoleUser),
				Content: []contentPart{
					{Type: "text", Text: "Describe the contents of this image in a short paragraph."},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
	}
	return c.createCompletion(ctx, body)
}

func (c *OpenAIClient) createCompletion(ctx context.Context, body chatCompletionRequest) (string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

package llm

import (
	"context"
	"fmt"
	"log"
	"mime"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Provider on top of the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

// Complete maps the gateway message list onto a Gemini chat session: the
// system message becomes the SystemInstruction, prior turns become history
// and the final user message is sent.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("message list is empty for chat completion")
	}

	model := c.client.GenerativeModel(c.model)

	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case RoleSystem:
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(m.Content)},
			}
		case RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		default:
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		}
	}

	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return "", fmt.Errorf("last message in list is not from 'user', cannot proceed with chat completion")
	}

	chatSession := model.StartChat()
	chatSession.History = history

	resp, err := chatSession.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	return responseText(resp)
}

func (c *GeminiClient) Describe(ctx context.Context, mimeType string, data []byte) (string, error) {
	model := c.client.GenerativeModel(c.model)

	// genai wants the bare image format, e.g. "png" rather than "image/png".
	format := mimeType
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		format = mt
	}
	format = strings.TrimPrefix(format, "image/")

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(format, data),
		genai.Text("Describe the contents of this image in a short paragraph."),
	)
	if err != nil {
		return "", fmt.Errorf("gemini image description failed: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}
	return b.String(), nil
}

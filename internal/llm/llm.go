package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in an ordered completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider abstracts the external completion API. Implementations must be
// safe for concurrent use.
type Provider interface {
	Model() string
	// Complete sends the ordered message list and returns the generated reply.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Describe asks the model to describe an image, given its MIME type and
	// raw bytes.
	Describe(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Canned is the offline fallback provider used when no API key is
// configured. It never fails.
type Canned struct{}

func (Canned) Model() string { return "canned" }

func (Canned) Complete(_ context.Context, _ []Message) (string, error) {
	return "I'm ChatKin, your web assistant. You can upload files, ask questions, " +
		"or say 'who created you' to learn about my origin!", nil
}

func (Canned) Describe(_ context.Context, _ string, _ []byte) (string, error) {
	return "An image was uploaded, but image description is not available right now.", nil
}

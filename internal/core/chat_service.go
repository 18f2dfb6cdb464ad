package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/memory"
)

// ErrEmptyMessage marks invalid client input: neither a message string nor a
// messages array was supplied.
var ErrEmptyMessage = errors.New("message or messages is required")

const creatorReply = "I was created by Akin Saye Sokpah, a Liberian student " +
	"currently attending Smythe University College at Sinkor. My family: " +
	"Mom Princess K. Sokpah, Dad A-Boy S. Sokpah, Brother Allenton Sokpah, " +
	"and Sister Akinlyn K. Sokpah."

const fallbackReply = "I'm sorry, I'm having trouble answering right now. " +
	"Please try again in a moment."

var creatorTriggers = []string{"who created you", "your creator", "who made you"}

const retryBackoff = 500 * time.Millisecond

// Reply is the generated assistant message returned to the client.
type Reply struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatInput carries one inbound chat request: either Message (optionally with
// UserID) or a full Messages history.
type ChatInput struct {
	Message  string
	UserID   string
	Messages []llm.Message
}

// ChatService translates one inbound chat request into one outbound
// completion call and relays the result, with session memory and graceful
// degradation on upstream failure.
type ChatService struct {
	provider     llm.Provider
	memory       *memory.Store
	systemPrompt string
	timeout      time.Duration
}

func NewChatService(provider llm.Provider, mem *memory.Store, systemPrompt string, timeout time.Duration) *ChatService {
	return &ChatService{
		provider:     provider,
		memory:       mem,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

func (s *ChatService) Model() string { return s.provider.Model() }

func (s *ChatService) Send(ctx context.Context, in ChatInput) (Reply, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" && len(in.Messages) == 0 {
		return Reply{}, ErrEmptyMessage
	}

	userID := in.UserID
	if userID == "" {
		userID = memory.AnonymousUser
	}

	latest := text
	if latest == "" {
		latest = lastUserContent(in.Messages)
	}

	// Fixed trigger phrases short-circuit without an outbound call.
	if isCreatorQuestion(latest) {
		if text != "" {
			s.remember(userID, text, creatorReply)
		}
		return s.reply(creatorReply), nil
	}

	outbound := make([]llm.Message, 0, len(in.Messages)+s.memory.Limit()+2)
	outbound = append(outbound, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	if text != "" {
		outbound = append(outbound, s.memory.Recall(userID)...)
		outbound = append(outbound, llm.Message{Role: llm.RoleUser, Content: text})
	} else {
		// The client supplied its own history; the persona is configured
		// server-side, so client system messages are dropped.
		for _, m := range in.Messages {
			if m.Role == llm.RoleSystem {
				continue
			}
			outbound = append(outbound, m)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.complete(ctx, outbound)
	if err != nil {
		log.Printf("Completion request failed, returning fallback reply: %v", err)
		content = fallbackReply
	}

	if text != "" {
		s.remember(userID, text, content)
	}
	return s.reply(content), nil
}

// complete performs the outbound call with one bounded retry, upstream
// failures are transient until proven otherwise.
func (s *ChatService) complete(ctx context.Context, messages []llm.Message) (string, error) {
	content, err := s.provider.Complete(ctx, messages)
	if err == nil {
		return content, nil
	}

	select {
	case <-ctx.Done():
		return "", err
	case <-time.After(retryBackoff):
	}
	return s.provider.Complete(ctx, messages)
}

func (s *ChatService) remember(userID, userText, replyText string) {
	s.memory.Remember(userID,
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: replyText},
	)
}

func (s *ChatService) reply(content string) Reply {
	return Reply{Role: llm.RoleAssistant, Content: content, CreatedAt: time.Now()}
}

func isCreatorQuestion(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range creatorTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

func lastUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

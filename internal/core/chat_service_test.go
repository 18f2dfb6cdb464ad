package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/memory"
)

type fakeProvider struct {
	mu           sync.Mutex
	completeErr  error
	describeErr  error
	reply        string
	description  string
	calls        int
	lastMessages []llm.Message
}

func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMessages = append([]llm.Message(nil), messages...)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	if f.reply == "" {
		return "fake reply", nil
	}
	return f.reply, nil
}

func (f *fakeProvider) Describe(_ context.Context, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.describeErr != nil {
		return "", f.describeErr
	}
	if f.description == "" {
		return "fake description", nil
	}
	return f.description, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestChatService(p llm.Provider, limit int) (*ChatService, *memory.Store) {
	mem := memory.NewStore(limit)
	return NewChatService(p, mem, "You are a test assistant.", time.Second), mem
}

func TestSendRejectsEmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		input ChatInput
	}{
		{name: "empty input", input: ChatInput{}},
		{name: "whitespace message", input: ChatInput{Message: "   "}},
		{name: "empty messages array", input: ChatInput{Messages: []llm.Message{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc, _ := newTestChatService(provider, 20)

			_, err := svc.Send(context.Background(), tt.input)
			if !errors.Is(err, ErrEmptyMessage) {
				t.Errorf("Send() error = %v, want ErrEmptyMessage", err)
			}
			if provider.callCount() != 0 {
				t.Errorf("provider called %d times, want 0", provider.callCount())
			}
		})
	}
}

func TestSendCreatorTriggerShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "who created you", message: "So, who created you exactly?"},
		{name: "uppercase", message: "WHO CREATED YOU"},
		{name: "your creator", message: "tell me about your creator"},
		{name: "who made you", message: "Who made you?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc, _ := newTestChatService(provider, 20)

			reply, err := svc.Send(context.Background(), ChatInput{Message: tt.message})
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if reply.Content != creatorReply {
				t.Errorf("Send() reply = %q, want the fixed creator reply", reply.Content)
			}
			if provider.callCount() != 0 {
				t.Errorf("provider called %d times, want 0", provider.callCount())
			}
		})
	}
}

func TestSendPrependsSystemPromptAndMemory(t *testing.T) {
	provider := &fakeProvider{reply: "hi there"}
	svc, _ := newTestChatService(provider, 20)

	if _, err := svc.Send(context.Background(), ChatInput{Message: "first question", UserID: "alice"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := svc.Send(context.Background(), ChatInput{Message: "second question", UserID: "alice"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := provider.lastMessages
	if len(got) != 4 {
		t.Fatalf("outbound list has %d messages, want 4 (system, prior user, prior reply, new user)", len(got))
	}
	if got[0].Role != llm.RoleSystem || got[0].Content != "You are a test assistant." {
		t.Errorf("outbound[0] = %+v, want configured system prompt", got[0])
	}
	if got[1].Content != "first question" || got[2].Content != "hi there" {
		t.Errorf("prior exchange not replayed: %+v, %+v", got[1], got[2])
	}
	if got[3].Role != llm.RoleUser || got[3].Content != "second question" {
		t.Errorf("outbound[3] = %+v, want the new user message", got[3])
	}
}

func TestSendFallsBackOnUpstreamFailure(t *testing.T) {
	provider := &fakeProvider{completeErr: errors.New("upstream down")}
	svc, _ := newTestChatService(provider, 20)

	reply, err := svc.Send(context.Background(), ChatInput{Message: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v, upstream failures must not surface", err)
	}
	if reply.Content != fallbackReply {
		t.Errorf("Send() reply = %q, want the fallback reply", reply.Content)
	}
	if provider.callCount() != 2 {
		t.Errorf("provider called %d times, want 2 (initial attempt plus one retry)", provider.callCount())
	}
}

func TestSendHistoryFormDropsClientSystemMessages(t *testing.T) {
	provider := &fakeProvider{}
	svc, mem := newTestChatService(provider, 20)

	_, err := svc.Send(context.Background(), ChatInput{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: "client-side persona"},
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi"},
		{Role: llm.RoleUser, Content: "how are you"},
	}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := provider.lastMessages
	if len(got) != 4 {
		t.Fatalf("outbound list has %d messages, want 4", len(got))
	}
	if got[0].Content != "You are a test assistant." {
		t.Errorf("outbound[0] = %q, want the configured system prompt", got[0].Content)
	}
	for _, m := range got[1:] {
		if m.Role == llm.RoleSystem {
			t.Errorf("client system message leaked into outbound list: %+v", m)
		}
	}

	// The history form carries its own context, session memory stays untouched.
	if retained := mem.Recall(memory.AnonymousUser); len(retained) != 0 {
		t.Errorf("session memory has %d messages after history-form send, want 0", len(retained))
	}
}

func TestSendMemoryNeverExceedsCap(t *testing.T) {
	provider := &fakeProvider{}
	svc, mem := newTestChatService(provider, 20)

	for i := 1; i <= 25; i++ {
		_, err := svc.Send(context.Background(), ChatInput{Message: fmt.Sprintf("message %d", i), UserID: "alice"})
		if err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}

	retained := mem.Recall("alice")
	if len(retained) != 20 {
		t.Fatalf("retained %d messages after 25 sends, want 20", len(retained))
	}
	for _, m := range retained {
		for i := 1; i <= 5; i++ {
			if m.Content == fmt.Sprintf("message %d", i) {
				t.Errorf("earliest message %q still retained", m.Content)
			}
		}
	}
}

func TestSendConcurrentSameUserLosesNothing(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	svc, mem := newTestChatService(provider, 100)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), ChatInput{
				Message: fmt.Sprintf("concurrent %d", i),
				UserID:  "alice",
			}); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	retained := mem.Recall("alice")
	if len(retained) != 4 {
		t.Fatalf("retained %d messages after concurrent sends, want 4", len(retained))
	}
	seen := make(map[string]int)
	for _, m := range retained {
		seen[m.Content]++
	}
	if seen["concurrent 0"] != 1 || seen["concurrent 1"] != 1 || seen["ok"] != 2 {
		t.Errorf("messages lost or duplicated under concurrency: %v", seen)
	}
}

func TestSendReplyShape(t *testing.T) {
	provider := &fakeProvider{reply: "hello back"}
	svc, _ := newTestChatService(provider, 20)

	reply, err := svc.Send(context.Background(), ChatInput{Message: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Role != llm.RoleAssistant {
		t.Errorf("reply role = %q, want assistant", reply.Role)
	}
	if reply.Content == "" {
		t.Error("reply content is empty")
	}
	if reply.CreatedAt.IsZero() {
		t.Error("reply createdAt is zero")
	}
}

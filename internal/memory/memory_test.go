package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
)

func TestRememberKeepsOrder(t *testing.T) {
	s := NewStore(20)
	s.Remember("alice", llm.Message{Role: llm.RoleUser, Content: "first"})
	s.Remember("alice", llm.Message{Role: llm.RoleAssistant, Content: "second"})

	got := s.Recall("alice")
	if len(got) != 2 {
		t.Fatalf("Recall() returned %d messages, want 2", len(got))
	}
	if got[0].Content != "first" || got[1].Content != "second" {
		t.Errorf("Recall() order = %q, %q; want first, second", got[0].Content, got[1].Content)
	}
}

func TestRememberTruncatesOldest(t *testing.T) {
	s := NewStore(20)
	for i := 1; i <= 25; i++ {
		s.Remember("alice", llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	got := s.Recall("alice")
	if len(got) != 20 {
		t.Fatalf("retained %d messages, want 20", len(got))
	}
	for i, m := range got {
		want := fmt.Sprintf("msg-%d", i+6)
		if m.Content != want {
			t.Errorf("message %d = %q, want %q", i, m.Content, want)
		}
	}
	for _, m := range got {
		for i := 1; i <= 5; i++ {
			if m.Content == fmt.Sprintf("msg-%d", i) {
				t.Errorf("message %q should have been dropped", m.Content)
			}
		}
	}
}

func TestRememberIsolatesUsers(t *testing.T) {
	s := NewStore(20)
	s.Remember("alice", llm.Message{Role: llm.RoleUser, Content: "hello"})

	if got := s.Recall("bob"); len(got) != 0 {
		t.Errorf("Recall(bob) returned %d messages, want 0", len(got))
	}
}

func TestConcurrentRememberLosesNothing(t *testing.T) {
	s := NewStore(100)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Remember("alice",
				llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("user-%d", i)},
				llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("reply-%d", i)},
			)
		}(i)
	}
	wg.Wait()

	got := s.Recall("alice")
	if len(got) != 4 {
		t.Fatalf("retained %d messages after concurrent writes, want 4", len(got))
	}
	seen := make(map[string]bool, 4)
	for _, m := range got {
		seen[m.Content] = true
	}
	for _, want := range []string{"user-0", "reply-0", "user-1", "reply-1"} {
		if !seen[want] {
			t.Errorf("message %q lost by concurrent Remember", want)
		}
	}
}

func TestForget(t *testing.T) {
	s := NewStore(20)
	s.Remember("alice", llm.Message{Role: llm.RoleUser, Content: "hello"})
	s.Forget("alice")

	if got := s.Recall("alice"); len(got) != 0 {
		t.Errorf("Recall() after Forget() returned %d messages, want 0", len(got))
	}
}

func TestRecallReturnsCopy(t *testing.T) {
	s := NewStore(20)
	s.Remember("alice", llm.Message{Role: llm.RoleUser, Content: "hello"})

	got := s.Recall("alice")
	got[0].Content = "mutated"

	if fresh := s.Recall("alice"); fresh[0].Content != "hello" {
		t.Errorf("Recall() exposed internal state, got %q", fresh[0].Content)
	}
}

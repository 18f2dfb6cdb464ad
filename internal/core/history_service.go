package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/store"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// is not owned by the requesting user.
var ErrConversationNotFound = errors.New("conversation not found")

const historyContextMessages = 20

const titlePrompt = "You are a helpful assistant that generates concise titles for chat conversations. " +
	"The title should be 3-5 words maximum. Just return the title itself, nothing else."

// HistoryService owns the persisted variant: durable per-user conversations
// with creation-time-ordered messages.
type HistoryService struct {
	dbStore      *store.SQLiteStore
	provider     llm.Provider
	systemPrompt string
	timeout      time.Duration
}

func NewHistoryService(db *store.SQLiteStore, provider llm.Provider, systemPrompt string, timeout time.Duration) *HistoryService {
	return &HistoryService{
		dbStore:      db,
		provider:     provider,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

func (s *HistoryService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *HistoryService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(externalUserID, passwordHash)
}

func (s *HistoryService) CreateConversation(userID int64, firstMessageContent *string) (*store.Conversation, []store.Message, error) {
	conversation, err := s.dbStore.CreateConversation(userID, nil) // Title will be generated later
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create conversation in DB: %w", err)
	}

	var messages []store.Message

	if firstMessageContent != nil && *firstMessageContent != "" {
		userMsg := store.Message{
			ConversationID: conversation.ID,
			Role:           string(llm.RoleUser),
			Content:        *firstMessageContent,
		}
		if err := s.dbStore.CreateMessage(&userMsg); err != nil {
			log.Printf("Failed to store first user message for new conversation %s: %v", conversation.ID, err)
			// Continue, but the conversation will be empty initially
		} else {
			messages = append(messages, userMsg)

			assistantMsg := store.Message{
				ConversationID: conversation.ID,
				Role:           string(llm.RoleAssistant),
				Content:        s.generateReply(conversation.ID, userMsg.Content),
			}
			if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
				log.Printf("Failed to store initial assistant message for new conversation %s: %v", conversation.ID, err)
			} else {
				messages = append(messages, assistantMsg)
			}

			// Auto-generate title after the first exchange
			go s.generateAndSaveTitle(conversation.ID, userID, userMsg.Content)
		}
	}

	return conversation, messages, nil
}

func (s *HistoryService) GetConversations(userID int64) ([]store.Conversation, error) {
	return s.dbStore.GetConversationsByUserID(userID)
}

func (s *HistoryService) GetConversationDetails(conversationID string, userID int64) (*store.Conversation, []store.Message, error) {
	conversation, err := s.dbStore.GetConversationByID(conversationID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conversation == nil {
		return nil, nil, nil // Not found
	}

	messages, err := s.dbStore.GetMessagesByConversationID(conversationID, 100, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for conversation: %w", err)
	}
	return conversation, messages, nil
}

func (s *HistoryService) PostMessage(conversationID string, userID int64, userContent string) (*store.Message, error) {
	// Verify the conversation exists and belongs to the user
	conversation, err := s.dbStore.GetConversationByID(conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify conversation: %w", err)
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	userMsg := store.Message{
		ConversationID: conversationID,
		Role:           string(llm.RoleUser),
		Content:        userContent,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	assistantMsg := store.Message{
		ConversationID: conversationID,
		Role:           string(llm.RoleAssistant),
		Content:        s.generateReply(conversationID, userContent),
	}
	if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	if conversation.Title == nil || *conversation.Title == "" {
		go s.generateAndSaveTitle(conversationID, userID, userContent)
	}

	return &assistantMsg, nil
}

// generateReply builds the completion request from the persisted history and
// degrades to the fixed fallback copy when the upstream call fails.
func (s *HistoryService) generateReply(conversationID, userContent string) string {
	if isCreatorQuestion(userContent) {
		return creatorReply
	}

	history, err := s.dbStore.GetLastNMessagesByConversationID(conversationID, historyContextMessages)
	if err != nil {
		log.Printf("Error getting history for conversation %s: %v. Proceeding without history.", conversationID, err)
		history = nil
	}

	outbound := make([]llm.Message, 0, len(history)+2)
	outbound = append(outbound, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	for _, msg := range history {
		outbound = append(outbound, llm.Message{Role: llm.Role(msg.Role), Content: msg.Content})
	}
	if len(outbound) == 1 || outbound[len(outbound)-1].Role != llm.RoleUser {
		outbound = append(outbound, llm.Message{Role: llm.RoleUser, Content: userContent})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	content, err := s.provider.Complete(ctx, outbound)
	if err != nil {
		log.Printf("Error generating reply for conversation %s: %v", conversationID, err)
		return fallbackReply
	}
	return content
}

func (s *HistoryService) generateAndSaveTitle(conversationID string, userID int64, basisContent string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	title, err := s.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: titlePrompt},
		{Role: llm.RoleUser, Content: basisContent},
	})
	if err != nil {
		log.Printf("Failed to generate title for conversation %s: %v", conversationID, err)
		return
	}
	title = strings.Trim(title, "\"'\n\r\t .")

	if err := s.dbStore.UpdateConversationTitle(conversationID, userID, title); err != nil {
		log.Printf("Failed to save generated title '%s' for conversation %s: %v", title, conversationID, err)
	}
}

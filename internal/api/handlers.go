package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/auth"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/core"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/store"
)

const maxUploadBytes = 32 << 20

type APIHandler struct {
	chatService    *core.ChatService
	uploadService  *core.UploadService
	historyService *core.HistoryService
}

func NewAPIHandler(cs *core.ChatService, us *core.UploadService, hs *core.HistoryService) *APIHandler {
	return &APIHandler{
		chatService:    cs,
		uploadService:  us,
		historyService: hs,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Chat gateway

type ChatRequest struct {
	Message  string        `json:"message"`
	UserID   string        `json:"userId"`
	Messages []llm.Message `json:"messages"`
}

type ChatResponse struct {
	Reply core.Reply `json:"reply"`
	Model string     `json:"model"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.chatService.Send(r.Context(), core.ChatInput{
		Message:  req.Message,
		UserID:   req.UserID,
		Messages: req.Messages,
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Chat request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, Model: h.chatService.Model()})
}

// Upload gateway

type UploadResponse struct {
	Message        string `json:"message"`
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	ContentSnippet string `json:"contentSnippet"`
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	result, err := h.uploadService.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		log.Printf("Upload of %s failed: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "Failed to process uploaded file")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:        "File uploaded successfully",
		URL:            "/uploads/" + result.StoredName,
		Filename:       result.Filename,
		ContentSnippet: result.ContentSnippet,
	})
}

// Accounts and persisted conversations

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.historyService.GetUserByExternalID(externalUserID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", externalUserID, err)
			writeError(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const userIDKey contextKey = "userID"

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.historyService.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	user, err := h.historyService.GetUserByExternalID(req.UserID)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.UserID, err)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type CreateConversationRequest struct {
	FirstMessage *string `json:"first_message,omitempty"`
}

type CreateConversationResponse struct {
	*store.Conversation
	Messages []store.Message `json:"messages,omitempty"`
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	var req CreateConversationRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	conversation, messages, err := h.historyService.CreateConversation(userID, req.FirstMessage)
	if err != nil {
		log.Printf("Error creating conversation for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, CreateConversationResponse{
		Conversation: conversation,
		Messages:     messages,
	})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)

	conversations, err := h.historyService.GetConversations(userID)
	if err != nil {
		log.Printf("Error listing conversations for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

type GetConversationResponse struct {
	*store.Conversation
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)
	conversationID := chi.URLParam(r, "conversationID")

	conversation, messages, err := h.historyService.GetConversationDetails(conversationID, userID)
	if err != nil {
		log.Printf("Error getting conversation details for user %d, conversation %s: %v", userID, conversationID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get conversation details")
		return
	}
	if conversation == nil {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, GetConversationResponse{
		Conversation: conversation,
		Messages:     messages,
	})
}

type PostConversationMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostConversationMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int64)
	conversationID := chi.URLParam(r, "conversationID")

	var req PostConversationMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	assistantMessage, err := h.historyService.PostMessage(conversationID, userID, req.Content)
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error posting message for user %d, conversation %s: %v", userID, conversationID, err)
		writeError(w, http.StatusInternalServerError, "Failed to post message")
		return
	}
	writeJSON(w, http.StatusOK, assistantMessage)
}

package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"` // Using UUID for external ID
	UserID    int64     `json:"user_id"`
	Title     *string   `json:"title"` // Nullable
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"` // Using UUID for external ID
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "system", "user" or "assistant"
	Content        string    `json:"content"`
	FileURL        string    `json:"file_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

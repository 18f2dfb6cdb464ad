package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles one writer at a time; a single pooled connection also
	// keeps :memory: databases coherent across goroutines.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant')),
        content TEXT NOT NULL,
        file_url TEXT NOT NULL DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Conversation methods

func (s *SQLiteStore) CreateConversation(userID int64, title *string) (*Conversation, error) {
	conversationID := uuid.NewString()
	stmt, err := s.db.Prepare("INSERT INTO conversations (id, user_id, title, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare conversation insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(conversationID, userID, title, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute conversation insert: %w", err)
	}
	return &Conversation{ID: conversationID, UserID: userID, Title: title, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetConversationByID(conversationID string, userID int64) (*Conversation, error) {
	var conversation Conversation
	var title sql.NullString
	err := s.db.QueryRow("SELECT id, user_id, title, created_at FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID).
		Scan(&conversation.ID, &conversation.UserID, &title, &conversation.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if title.Valid {
		conversation.Title = &title.String
	}
	return &conversation, nil
}

func (s *SQLiteStore) GetConversationsByUserID(userID int64) ([]Conversation, error) {
	rows, err := s.db.Query("SELECT id, user_id, title, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conversation Conversation
		var title sql.NullString
		if err := rows.Scan(&conversation.ID, &conversation.UserID, &title, &conversation.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		if title.Valid {
			conversation.Title = &title.String
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

func (s *SQLiteStore) UpdateConversationTitle(conversationID string, userID int64, title string) error {
	stmt, err := s.db.Prepare("UPDATE conversations SET title = ? WHERE id = ? AND user_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare conversation title update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(title, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to execute conversation title update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("conversation not found or not owned by user, title not updated")
	}
	return nil
}

// Message methods

func (s *SQLiteStore) CreateMessage(msg *Message) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	msg.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO messages (id, conversation_id, role, content, file_url, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.FileURL, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByConversationID(conversationID string, limit int, offset int) ([]Message, error) {
	query := "SELECT id, conversation_id, role, content, file_url, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC LIMIT ? OFFSET ?"
	rows, err := s.db.Query(query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.FileURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *SQLiteStore) GetLastNMessagesByConversationID(conversationID string, n int) ([]Message, error) {
	query := `
        SELECT id, conversation_id, role, content, file_url, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at DESC
        LIMIT ?
    `

	rows, err := s.db.Query(query, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.FileURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}

	// Restore chronological order, the query returns newest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

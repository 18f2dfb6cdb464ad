package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultSystemPrompt = "You are ChatKin, a friendly web assistant. " +
	"Answer clearly and concisely. Users can chat with you or upload files " +
	"(PDF, Word documents, plain text, images) for you to read and discuss."

type Config struct {
	Provider      string // "openai" or "gemini"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string

	HTTPPort    string
	DatabaseURL string
	JWTSecret   string
	UploadDir   string
	ClientDir   string
	LogLevel    string

	SystemPrompt   string
	MemoryLimit    int
	SnippetLimit   int
	RequestTimeout time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		Provider:      getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "chatkin.db"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		ClientDir:   getEnv("CLIENT_DIR", "client/dist"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		SystemPrompt:   getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
		MemoryLimit:    getEnvAsInt("MEMORY_LIMIT", 20),
		SnippetLimit:   getEnvAsInt("SNIPPET_LIMIT", 3000),
		RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 45)) * time.Second,
	}

	// A missing completion-API key degrades chat to canned replies, it must
	// not prevent startup.
	switch AppConfig.Provider {
	case "gemini":
		if AppConfig.GeminiAPIKey == "" {
			log.Println("Warning: GEMINI_API_KEY not set, chat will serve canned replies")
		}
	default:
		if AppConfig.OpenAIAPIKey == "" {
			log.Println("Warning: OPENAI_API_KEY not set, chat will serve canned replies")
		}
	}

	if AppConfig.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, conversation history endpoints are disabled")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

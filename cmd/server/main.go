package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/api"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/config"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/core"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/memory"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Select the completion provider
	provider := newProvider()
	if closer, ok := provider.(interface{ Close() }); ok {
		defer closer.Close()
	}
	log.Printf("Using completion provider %q (model %s)", config.AppConfig.Provider, provider.Model())

	// Initialize services
	sessionMemory := memory.NewStore(config.AppConfig.MemoryLimit)
	chatService := core.NewChatService(provider, sessionMemory, config.AppConfig.SystemPrompt, config.AppConfig.RequestTimeout)
	uploadService, err := core.NewUploadService(provider, config.AppConfig.UploadDir, config.AppConfig.SnippetLimit, config.AppConfig.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to initialize upload service: %v", err)
	}
	historyService := core.NewHistoryService(dbStore, provider, config.AppConfig.SystemPrompt, config.AppConfig.RequestTimeout)

	// Initialize API handler and router
	apiHandler := api.NewAPIHandler(chatService, uploadService, historyService)
	router := api.NewRouter(apiHandler, api.RouterOptions{
		UploadDir:   config.AppConfig.UploadDir,
		ClientDir:   config.AppConfig.ClientDir,
		AuthEnabled: config.AppConfig.JWTSecret != "",
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second, // Adjusted for potentially slower LLM handshakes
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// newProvider picks the configured completion provider, degrading to canned
// replies when no usable API key is present.
func newProvider() llm.Provider {
	cfg := config.AppConfig
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return llm.Canned{}
		}
		client, err := llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("Warning: failed to create Gemini client, serving canned replies: %v", err)
			return llm.Canned{}
		}
		return client
	default:
		if cfg.OpenAIAPIKey == "" {
			return llm.Canned{}
		}
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
}

package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions selects which surfaces are mounted.
type RouterOptions struct {
	UploadDir   string
	ClientDir   string
	AuthEnabled bool // conversation history requires a configured JWT secret
}

func NewRouter(apiHandler *APIHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/chat", apiHandler.ChatHandler)
		r.Post("/upload", apiHandler.UploadHandler)

		if opts.AuthEnabled {
			r.Post("/signup", apiHandler.SignupHandler)
			r.Post("/login", apiHandler.LoginHandler)

			// User-authenticated routes
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.JWTAuthMiddleware)

				r.Post("/conversations", apiHandler.CreateConversationHandler)
				r.Get("/conversations", apiHandler.ListConversationsHandler)
				r.Get("/conversations/{conversationID}", apiHandler.GetConversationHandler)
				r.Post("/conversations/{conversationID}/messages", apiHandler.PostConversationMessageHandler)
			})
		}
	})

	// Retained uploads are served as static assets.
	uploadServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir)))
	r.Get("/uploads/*", uploadServer.ServeHTTP)

	// Everything else falls back to the client application shell.
	r.NotFound(spaHandler(opts.ClientDir))

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// spaHandler serves files from the client build directory, falling back to
// index.html so client-side routing keeps working. Without a client build it
// degrades to a plain 404.
func spaHandler(clientDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if clientDir == "" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		requested := filepath.Join(clientDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			http.ServeFile(w, r, requested)
			return
		}

		index := filepath.Join(clientDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}

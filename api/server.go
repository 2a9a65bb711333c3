package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/telnovia-org/analytics/analysis"
	"github.com/telnovia-org/analytics/store"
)

// ============================================================================
// HTTP SERVER
// ============================================================================

// Server holds the handler dependencies and builds the route tree.
type Server struct {
	notebooks store.Notebooks
	turns     store.Conversations
	router    *analysis.Router
	uploadDir string
	log       *slog.Logger
}

// New builds a Server over the given stores and query router.
func New(notebooks store.Notebooks, turns store.Conversations, router *analysis.Router, uploadDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		notebooks: notebooks,
		turns:     turns,
		router:    router,
		uploadDir: uploadDir,
		log:       log,
	}
}

// Handler assembles the chi route tree with CORS for the given origins.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Owner-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/analysis/query", s.handleQuery)
		r.Get("/notebooks", s.handleListNotebooks)
		r.Get("/notebooks/{notebookID}", s.handleGetNotebook)
		r.Post("/notebooks/{notebookID}/share", s.handleShare)
		r.Get("/notebooks/{notebookID}/conversations", s.handleConversations)
		r.Get("/shared/{token}", s.handleShared)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// ownerID extracts the caller identity. Auth proper is out of scope here;
// the frontend proxy injects X-Owner-Id after verifying the session.
func ownerID(r *http.Request) string {
	if id := r.Header.Get("X-Owner-Id"); id != "" {
		return id
	}
	return "anonymous"
}

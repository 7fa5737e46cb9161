package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/gaia-mentor/internal/auth"
	"github.com/danielpatrickdp/gaia-mentor/internal/chat"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
)

// #region config

// Config holds the HTTP surface settings.
type Config struct {
	CORSOrigins  []string
	MaxBodyBytes int64
	Version      string
}

// DefaultConfig allows the local frontend dev server.
func DefaultConfig() Config {
	return Config{
		CORSOrigins:  []string{"http://localhost:5173"},
		MaxBodyBytes: 64 << 10,
		Version:      "dev",
	}
}

// #endregion config

// #region server

// Server serves the mentor API.
type Server struct {
	chat     *chat.Service
	verifier auth.Verifier
	logger   *zap.Logger
	cfg      Config
	router   *mux.Router
}

// NewServer builds the router. verifier is required; use auth.StaticVerifier
// when authentication is disabled.
func NewServer(svc *chat.Service, verifier auth.Verifier, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{chat: svc, verifier: verifier, logger: logger, cfg: cfg, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.Use(s.cors)

	s.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodOptions)

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/goddesses", s.handlePersonas).Methods(http.MethodGet)

	// protected routes live on the root router so a wrong method is a 405
	s.protected("/api/user/profile", s.handleProfile, http.MethodGet)
	s.protected("/api/user/profile", s.handleUpdateProfile, http.MethodPut)
	s.protected("/api/chat", s.handleChat, http.MethodPost)
	s.protected("/api/handoff/confirm", s.handleConfirm, http.MethodPost)
	s.protected("/api/handoff/decline", s.handleDecline, http.MethodPost)
	s.protected("/api/quiz", s.handleQuiz, http.MethodPost)
	s.protected("/api/routing/state", s.handleRoutingState, http.MethodGet)
}

func (s *Server) protected(path string, h http.HandlerFunc, method string) {
	s.router.Handle(path, s.authenticate(h)).Methods(method)
}

// #endregion server

// #region public-handlers

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "gaia-mentor", "version": s.cfg.Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// personaView is the public card for one persona.
type personaView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tagline     string `json:"tagline"`
	Domain      string `json:"domain"`
	Default     bool   `json:"default"`
}

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	reg := s.chat.Registry()
	views := lo.Map(reg.All(), func(p persona.Persona, _ int) personaView {
		return personaView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Tagline:     p.Tagline,
			Domain:      p.Domain,
			Default:     p.ID == reg.DefaultID(),
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"goddesses": views})
}

// #endregion public-handlers

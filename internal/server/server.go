// Package server exposes the pseudonymization engine over HTTP: session
// lifecycle, document processing, dry-run analysis, and a WebSocket event
// feed for monitoring.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/audit"
	"github.com/rebeccahihi/pseudo/internal/cache"
	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/engine"
	"github.com/rebeccahihi/pseudo/internal/logger"
	"github.com/rebeccahihi/pseudo/internal/mapper"
	"github.com/rebeccahihi/pseudo/internal/ner"
	"github.com/rebeccahihi/pseudo/internal/websocket"
)

// Server is the HTTP front end over the pseudonymization pipeline.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *engine.Pipeline
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub

	// Optional collaborators; nil when disabled in configuration.
	cache *cache.ResultCache
	audit *audit.Store

	sessions  map[string]*mapper.Session
	sessionMu sync.RWMutex

	limiter   *clientLimiter
	startTime time.Time
	docCount  int64
	docMu     sync.Mutex
}

// New creates a server instance and wires its collaborators from config.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	var extractor *ner.Client
	if !cfg.Pseudonym.PatternOnly {
		var err error
		extractor, err = ner.New(cfg.NER, log.WithComponent("ner"))
		if err != nil {
			return nil, fmt.Errorf("failed to create NER extractor: %w", err)
		}
	}

	pipeline, err := engine.New(cfg.Pseudonym, extractor, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	wsHub := websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket").Logger)

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		pipeline:  pipeline,
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		sessions:  make(map[string]*mapper.Session),
		limiter:   newClientLimiter(cfg.Server.RateLimit.RequestsPerMin, cfg.Server.RateLimit.Burst),
		startTime: time.Now(),
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		server.cache = resultCache
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		server.audit = store
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware)
	}

	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}/documents", s.handleProcessDocument).Methods("POST")
	api.HandleFunc("/sessions/{id}/mapping", s.handleGetMapping).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods("DELETE")
	api.HandleFunc("/pseudonymize", s.handlePseudonymize).Methods("POST")
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting pseudonymization server",
		zap.Int("port", s.config.Server.Port),
		zap.String("ner_backend", s.config.NER.Backend),
		zap.Bool("pattern_only", s.config.Pseudonym.PatternOnly),
		zap.Bool("cache_enabled", s.config.Cache.Enabled),
		zap.Bool("audit_enabled", s.config.Audit.Enabled),
	)

	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and closes all sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping pseudonymization server")

	s.sessionMu.Lock()
	for id, session := range s.sessions {
		s.persistSession(ctx, session)
		session.Close()
		delete(s.sessions, id)
	}
	s.sessionMu.Unlock()

	if s.cache != nil {
		s.cache.Close()
	}
	if s.audit != nil {
		s.audit.Close()
	}

	return s.server.Shutdown(ctx)
}

// session looks up an active session by ID.
func (s *Server) session(id string) (*mapper.Session, bool) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// persistSession writes a session's mapping table to the audit store.
func (s *Server) persistSession(ctx context.Context, session *mapper.Session) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordMapping(ctx, session.ID(), session.Mapping()); err != nil {
		s.logger.Error("Failed to persist session mapping",
			zap.String("session_id", session.ID()),
			zap.Error(err))
	}
}

func (s *Server) countDocument() int64 {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	s.docCount++
	return s.docCount
}

// GetWebSocketHub returns the hub for broadcasting events.
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

// generateSessionID returns a 32-char random hex identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/audit"
	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/mapper"
	"github.com/rebeccahihi/pseudo/internal/websocket"
)

const maxDocumentBytes = 10 << 20 // 10 MiB

type documentRequest struct {
	Text string `json:"text"`
}

type pseudonymizeRequest struct {
	Text string `json:"text"`
	// Seed optionally overrides the configured randomization seed for this
	// one-shot run.
	Seed *int64 `json:"seed,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type analyzeResponse struct {
	Entities []entity.ResolvedEntity `json:"entities"`
	Cached   bool                    `json:"cached"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.RLock()
	activeSessions := len(s.sessions)
	s.sessionMu.RUnlock()

	s.docMu.Lock()
	documents := s.docCount
	s.docMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            "pseudo",
		"version":         "0.1.0",
		"ner_backend":     s.config.NER.Backend,
		"pattern_only":    s.config.Pseudonym.PatternOnly,
		"active_sessions": activeSessions,
		"documents":       documents,
		"uptime":          time.Since(s.startTime).String(),
	})
}

// handleWebSocket upgrades to the monitoring event feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// handleCreateSession opens a new pseudonymization session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := generateSessionID()
	session := mapper.NewSession(id, s.config.Pseudonym, s.logger)

	s.sessionMu.Lock()
	s.sessions[id] = session
	s.sessionMu.Unlock()

	s.logger.Info("Session created", zap.String("session_id", id))

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeSession,
		Timestamp: time.Now(),
		Data:      websocket.SessionEvent{Action: "created", SessionID: id},
	})

	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, CreatedAt: session.CreatedAt()})
}

// handleProcessDocument pseudonymizes one document under an existing session.
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	session, ok := s.session(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.pipeline.Process(r.Context(), session, req.Text)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}

	s.countDocument()
	s.recordRun(r, sessionID, result)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDocument,
		Timestamp: time.Now(),
		RequestID: getRequestID(r.Context()),
		Data: websocket.DocumentEvent{
			SessionID:        sessionID,
			EntityCount:      result.Metrics.EntityCount,
			ReplacementCount: result.Metrics.ReplacementCount,
			MeanConfidence:   result.Metrics.MeanConfidence,
			ProcessingMS:     float64(result.Metrics.Elapsed.Nanoseconds()) / 1e6,
			PatternOnly:      s.config.Pseudonym.PatternOnly,
		},
	})

	writeJSON(w, http.StatusOK, result)
}

// handleGetMapping returns a session's mapping table.
func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	session, ok := s.session(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"mapping":    session.Mapping(),
	})
}

// handleCloseSession closes a session, persisting its mapping table when the
// audit store is enabled.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	s.sessionMu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.sessionMu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	mappings := len(session.Mapping())
	s.persistSession(r.Context(), session)
	session.Close()

	s.logger.Info("Session closed",
		zap.String("session_id", sessionID),
		zap.Int("mappings", mappings))

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeSession,
		Timestamp: time.Now(),
		Data:      websocket.SessionEvent{Action: "closed", SessionID: sessionID, Mappings: mappings},
	})

	w.WriteHeader(http.StatusNoContent)
}

// handlePseudonymize runs one document through an ephemeral session.
func (s *Server) handlePseudonymize(w http.ResponseWriter, r *http.Request) {
	var req pseudonymizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := s.config.Pseudonym
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	session := mapper.NewSession(generateSessionID(), cfg, s.logger)
	defer session.Close()

	result, err := s.pipeline.Process(r.Context(), session, req.Text)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}

	s.countDocument()
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyze returns resolved entities without allocating pseudonyms.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fingerprint := configFingerprint(s.config.Pseudonym, s.config.NER)

	if s.cache != nil {
		if cached, hit := s.cache.Get(r.Context(), fingerprint, req.Text); hit {
			writeJSON(w, http.StatusOK, analyzeResponse{Entities: cached.Entities, Cached: true})
			return
		}
	}

	entities, err := s.pipeline.Analyze(r.Context(), req.Text)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Store(r.Context(), fingerprint, req.Text, entities); err != nil {
			s.logger.Warn("Failed to cache analysis", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Entities: entities})
}

// recordRun writes run statistics to the audit store when enabled.
func (s *Server) recordRun(r *http.Request, sessionID string, result *entity.ProcessingResult) {
	if s.audit == nil {
		return
	}
	run := &audit.Run{
		SessionID:      sessionID,
		EntityCount:    result.Metrics.EntityCount,
		Replacements:   result.Metrics.ReplacementCount,
		ElapsedMS:      float64(result.Metrics.Elapsed.Nanoseconds()) / 1e6,
		MeanConfidence: result.Metrics.MeanConfidence,
		PatternOnly:    s.config.Pseudonym.PatternOnly,
	}
	if err := s.audit.RecordRun(r.Context(), run); err != nil {
		s.logger.Error("Failed to record run", zap.Error(err))
	}
}

// writeProcessError maps pipeline errors onto HTTP status codes.
func (s *Server) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger.WithRequestID(getRequestID(r.Context()))

	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entity.ErrExtractorTimeout):
		logger.Error("Extractor timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "NER extractor timed out")
	case errors.Is(err, entity.ErrExtractorUnavailable):
		logger.Error("Extractor unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "NER extractor unavailable")
	case errors.Is(err, entity.ErrSessionClosed):
		writeError(w, http.StatusConflict, "session is closed")
	default:
		logger.Error("Processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// configFingerprint identifies the detection-relevant configuration for
// cache keying: a config change must never serve stale analyses.
func configFingerprint(p config.PseudonymConfig, n config.NERConfig) string {
	b, _ := json.Marshal(struct {
		P config.PseudonymConfig
		N config.NERConfig
	}{p, n})
	return string(b)
}

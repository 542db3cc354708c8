// Package ner is the boundary to the external NER capability. The core
// treats the model as a black box exposing extract(text) -> spans; this
// package adds only label filtering, coordinate validation, and the
// timeout contract. No extraction logic lives here.
package ner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

// Span is one raw model detection, byte-addressed into the input text.
type Span struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Backend is the collaborator interface: a single synchronous call out of
// the core. Implementations must honor ctx cancellation.
type Backend interface {
	Extract(ctx context.Context, text string) ([]Span, error)
}

// Client wraps a Backend with the extractor contract: caller-supplied
// timeout, person/organization label filtering, and bounds validation.
type Client struct {
	backend Backend
	config  config.NERConfig
	logger  *logger.Logger
}

// New creates an extractor client for the configured backend.
func New(cfg config.NERConfig, log *logger.Logger) (*Client, error) {
	var backend Backend
	switch cfg.Backend {
	case "http":
		backend = newHTTPBackend(cfg.Endpoint, log)
	case "onnx":
		backend = newTokenClassifierBackend(cfg.ModelPath, cfg.VocabPath, log.Logger)
		if backend == nil {
			return nil, fmt.Errorf("%w: onnx backend requires the onnx build tag", entity.ErrExtractorUnavailable)
		}
	case "none":
		backend = nil
	default:
		return nil, fmt.Errorf("unknown NER backend: %s", cfg.Backend)
	}

	log.Info("NER extractor initialized",
		zap.String("backend", cfg.Backend),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &Client{backend: backend, config: cfg, logger: log}, nil
}

// NewWithBackend wires an explicit backend, used by tests and embedders.
func NewWithBackend(backend Backend, cfg config.NERConfig, log *logger.Logger) *Client {
	return &Client{backend: backend, config: cfg, logger: log}
}

// Extract calls the model and returns candidate spans for person and
// organization labels only. Unavailability and timeouts are reported, never
// swallowed: degrading to pattern-only mode is the caller's explicit choice.
func (c *Client) Extract(ctx context.Context, text string) ([]entity.CandidateSpan, error) {
	if c.backend == nil {
		return nil, fmt.Errorf("%w: no backend configured", entity.ErrExtractorUnavailable)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	raw, err := c.backend.Extract(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", entity.ErrExtractorTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrExtractorUnavailable, err)
	}

	spans := make([]entity.CandidateSpan, 0, len(raw))
	for _, s := range raw {
		typ, ok := mapLabel(s.Label)
		if !ok {
			continue
		}
		if s.Score < c.config.MinScore {
			continue
		}
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			c.logger.Warn("Model span out of bounds",
				zap.Int("start", s.Start),
				zap.Int("end", s.End),
				zap.Int("text_len", len(text)),
			)
			continue
		}
		surface := text[s.Start:s.End]
		if strings.TrimSpace(surface) == "" {
			continue
		}
		spans = append(spans, entity.CandidateSpan{
			Start:      s.Start,
			End:        s.End,
			Text:       surface,
			Type:       typ,
			Source:     "model",
			Confidence: s.Score,
		})
	}

	c.logger.Debug("Model extraction completed",
		zap.Int("raw_spans", len(raw)),
		zap.Int("kept_spans", len(spans)),
	)

	return spans, nil
}

// mapLabel translates model labels to entity types. Only person and
// organization labels survive; everything else is discarded here.
func mapLabel(label string) (entity.Type, bool) {
	switch strings.ToUpper(label) {
	case "PERSON", "PER":
		return entity.TypePerson, true
	case "ORG", "ORGANIZATION":
		return entity.TypeOrg, true
	}
	return "", false
}

// Static is a fixed-output backend for tests and offline runs.
type Static struct {
	Spans []Span
	Err   error
}

// Extract returns the configured spans or error.
func (s *Static) Extract(ctx context.Context, text string) ([]Span, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Spans, nil
}

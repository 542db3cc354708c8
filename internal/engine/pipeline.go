// Package engine runs the pseudonymization pipeline: pattern matching and
// model extraction produce candidates, overlap resolution picks winners,
// role classification tags persons, and the session mapper hands out
// pseudonyms that the replacement step splices into the text.
package engine

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
	"github.com/rebeccahihi/pseudo/internal/mapper"
	"github.com/rebeccahihi/pseudo/internal/ner"
	"github.com/rebeccahihi/pseudo/internal/patterns"
	"github.com/rebeccahihi/pseudo/internal/resolver"
	"github.com/rebeccahihi/pseudo/internal/roles"
)

// Pipeline wires the detection and replacement stages. It is stateless
// across documents; all cross-document state lives in the Session.
type Pipeline struct {
	matcher    *patterns.Matcher
	extractor  *ner.Client
	classifier *roles.Classifier
	resolver   *resolver.Resolver
	cfg        config.PseudonymConfig
	logger     *logger.Logger
}

// New builds a pipeline from configuration. The extractor may be nil only
// when cfg.PatternOnly is set.
func New(cfg config.PseudonymConfig, extractor *ner.Client, log *logger.Logger) (*Pipeline, error) {
	matcher, err := patterns.NewMatcher(cfg, log.WithComponent("patterns"))
	if err != nil {
		return nil, err
	}
	if extractor == nil && !cfg.PatternOnly {
		return nil, fmt.Errorf("%w: no extractor wired and pattern_only not set", entity.ErrExtractorUnavailable)
	}

	return &Pipeline{
		matcher:    matcher,
		extractor:  extractor,
		classifier: roles.New(cfg.RoleWindow, log.WithComponent("roles")),
		resolver:   resolver.New(log.WithComponent("resolver")),
		cfg:        cfg,
		logger:     log.WithComponent("engine"),
	}, nil
}

// Process pseudonymizes one document under the given session. Extractor
// failures abort the run unless pattern-only mode was explicitly configured;
// silent degradation is never implied.
func (p *Pipeline) Process(ctx context.Context, session *mapper.Session, text string) (*entity.ProcessingResult, error) {
	start := time.Now()

	if text == "" {
		return &entity.ProcessingResult{Text: "", Mapping: session.Mapping()}, nil
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", entity.ErrInvalidInput)
	}

	resolved, err := p.detect(ctx, text)
	if err != nil {
		return nil, err
	}

	pseudonyms := make([]string, len(resolved))
	var confidenceSum float64
	for i, e := range resolved {
		pseudonym, err := session.Resolve(e)
		if err != nil {
			return nil, err
		}
		pseudonyms[i] = pseudonym
		confidenceSum += e.Confidence
	}

	output := applyReplacements(text, resolved, pseudonyms)

	metrics := entity.Metrics{
		EntityCount:      len(resolved),
		ReplacementCount: len(resolved),
		Elapsed:          time.Since(start),
	}
	if len(resolved) > 0 {
		metrics.MeanConfidence = confidenceSum / float64(len(resolved))
	}

	p.logger.Info("Document processed",
		zap.String("session_id", session.ID()),
		zap.Int("entities", metrics.EntityCount),
		zap.Duration("elapsed", metrics.Elapsed),
	)

	return &entity.ProcessingResult{
		Text:    output,
		Mapping: session.Mapping(),
		Metrics: metrics,
	}, nil
}

// Analyze runs detection, resolution and role classification without
// touching any session state. Used by the dry-run endpoint.
func (p *Pipeline) Analyze(ctx context.Context, text string) ([]entity.ResolvedEntity, error) {
	if text == "" {
		return nil, nil
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", entity.ErrInvalidInput)
	}
	return p.detect(ctx, text)
}

// detect collects candidates from both sources, resolves overlaps and tags
// person roles.
func (p *Pipeline) detect(ctx context.Context, text string) ([]entity.ResolvedEntity, error) {
	candidates := p.matcher.Find(text)

	if !p.cfg.PatternOnly && p.extractor != nil {
		modelSpans, err := p.extractor.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, modelSpans...)
	}

	resolved := p.resolver.Resolve(candidates)
	p.classifier.Annotate(text, resolved)

	return resolved, nil
}

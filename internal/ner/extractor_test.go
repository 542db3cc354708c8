package ner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

func testNERConfig() config.NERConfig {
	return config.NERConfig{Backend: "none", Timeout: time.Second, MinScore: 0.5}
}

func TestExtractFiltersLabels(t *testing.T) {
	text := "John Smith of ABC Corp met in Paris on Monday."
	backend := &Static{Spans: []Span{
		{Start: 0, End: 10, Label: "PERSON", Score: 0.9},
		{Start: 14, End: 22, Label: "ORG", Score: 0.9},
		{Start: 30, End: 35, Label: "GPE", Score: 0.9},
		{Start: 39, End: 45, Label: "DATE", Score: 0.9},
	}}
	c := NewWithBackend(backend, testNERConfig(), logger.NewNop())

	spans, err := c.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans after label filtering, got %+v", spans)
	}
	if spans[0].Type != entity.TypePerson || spans[1].Type != entity.TypeOrg {
		t.Errorf("wrong types: %+v", spans)
	}
	if spans[0].Source != "model" {
		t.Errorf("source = %q, want model", spans[0].Source)
	}
}

func TestExtractMinScore(t *testing.T) {
	backend := &Static{Spans: []Span{
		{Start: 0, End: 4, Label: "PERSON", Score: 0.4},
		{Start: 5, End: 9, Label: "PERSON", Score: 0.6},
	}}
	c := NewWithBackend(backend, testNERConfig(), logger.NewNop())

	spans, err := c.Extract(context.Background(), "John Mary both here")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(spans) != 1 || spans[0].Start != 5 {
		t.Errorf("low-score span should be dropped, got %+v", spans)
	}
}

func TestExtractBoundsValidation(t *testing.T) {
	text := "short"
	backend := &Static{Spans: []Span{
		{Start: -1, End: 3, Label: "PERSON", Score: 0.9},
		{Start: 2, End: 99, Label: "PERSON", Score: 0.9},
		{Start: 3, End: 3, Label: "PERSON", Score: 0.9},
		{Start: 0, End: 5, Label: "PERSON", Score: 0.9},
	}}
	c := NewWithBackend(backend, testNERConfig(), logger.NewNop())

	spans, err := c.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "short" {
		t.Errorf("only the in-bounds span should survive, got %+v", spans)
	}
}

func TestExtractUnavailable(t *testing.T) {
	t.Run("backend error", func(t *testing.T) {
		c := NewWithBackend(&Static{Err: errors.New("boom")}, testNERConfig(), logger.NewNop())
		_, err := c.Extract(context.Background(), "text")
		if !errors.Is(err, entity.ErrExtractorUnavailable) {
			t.Errorf("want ErrExtractorUnavailable, got %v", err)
		}
	})

	t.Run("no backend configured", func(t *testing.T) {
		c := NewWithBackend(nil, testNERConfig(), logger.NewNop())
		_, err := c.Extract(context.Background(), "text")
		if !errors.Is(err, entity.ErrExtractorUnavailable) {
			t.Errorf("want ErrExtractorUnavailable, got %v", err)
		}
	})
}

func TestExtractTimeout(t *testing.T) {
	slow := backendFunc(func(ctx context.Context, text string) ([]Span, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, nil
		}
	})

	cfg := testNERConfig()
	cfg.Timeout = 10 * time.Millisecond
	c := NewWithBackend(slow, cfg, logger.NewNop())

	_, err := c.Extract(context.Background(), "text")
	if !errors.Is(err, entity.ErrExtractorTimeout) {
		t.Errorf("want ErrExtractorTimeout, got %v", err)
	}
}

type backendFunc func(ctx context.Context, text string) ([]Span, error)

func (f backendFunc) Extract(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

func TestHTTPBackend(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req extractRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			json.NewEncoder(w).Encode(extractResponse{Entities: []Span{
				{Start: 0, End: 4, Label: "PER", Score: 0.9},
			}})
		}))
		defer srv.Close()

		cfg := testNERConfig()
		cfg.Backend = "http"
		cfg.Endpoint = srv.URL
		c := NewWithBackend(newHTTPBackend(srv.URL, logger.NewNop()), cfg, logger.NewNop())

		spans, err := c.Extract(context.Background(), "John here")
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if len(spans) != 1 || spans[0].Type != entity.TypePerson {
			t.Errorf("unexpected spans: %+v", spans)
		}
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewWithBackend(newHTTPBackend(srv.URL, logger.NewNop()), testNERConfig(), logger.NewNop())
		_, err := c.Extract(context.Background(), "John here")
		if !errors.Is(err, entity.ErrExtractorUnavailable) {
			t.Errorf("want ErrExtractorUnavailable, got %v", err)
		}
	})
}

func TestNewBackendSelection(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := testNERConfig()
		cfg.Backend = "quantum"
		if _, err := New(cfg, logger.NewNop()); err == nil {
			t.Error("expected error for unknown backend")
		}
	})

	t.Run("none backend builds", func(t *testing.T) {
		c, err := New(testNERConfig(), logger.NewNop())
		if err != nil {
			t.Fatalf("none backend should build: %v", err)
		}
		if _, err := c.Extract(context.Background(), "x"); !errors.Is(err, entity.ErrExtractorUnavailable) {
			t.Errorf("none backend Extract should be unavailable, got %v", err)
		}
	})
}

func TestMapLabel(t *testing.T) {
	tests := []struct {
		label string
		want  entity.Type
		ok    bool
	}{
		{"PERSON", entity.TypePerson, true},
		{"per", entity.TypePerson, true},
		{"ORG", entity.TypeOrg, true},
		{"organization", entity.TypeOrg, true},
		{"GPE", "", false},
		{"MISC", "", false},
	}
	for _, tt := range tests {
		got, ok := mapLabel(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("mapLabel(%q) = (%q, %v), want (%q, %v)", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

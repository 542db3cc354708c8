package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.NER.Backend = "none"
	cfg.Pseudonym.PatternOnly = true
	cfg.Cache.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Server.RateLimit.Enabled = false

	s, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New server failed: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("empty session id")
	}
	return resp.ID
}

func TestHealthAndInfo(t *testing.T) {
	s := testServer(t)

	t.Run("health", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("health status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "healthy") {
			t.Errorf("unexpected health body: %s", rec.Body.String())
		}
	})

	t.Run("info", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/info", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("info status = %d", rec.Code)
		}
		var info map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
			t.Fatalf("decode info: %v", err)
		}
		if info["name"] != "pseudo" {
			t.Errorf("info name = %v", info["name"])
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	s := testServer(t)
	id := createSession(t, s)

	t.Run("process document", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/v1/sessions/"+id+"/documents",
			documentRequest{Text: "Pay $1,500.00 by 15 January 2024."})
		if rec.Code != http.StatusOK {
			t.Fatalf("process status = %d, body %s", rec.Code, rec.Body.String())
		}
		var result entity.ProcessingResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if strings.Contains(result.Text, "$1,500.00") {
			t.Errorf("money not replaced: %q", result.Text)
		}
		if len(result.Mapping) == 0 {
			t.Error("empty mapping after processing")
		}
	})

	t.Run("mapping endpoint", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/v1/sessions/"+id+"/mapping", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("mapping status = %d", rec.Code)
		}
		var resp struct {
			SessionID string                `json:"session_id"`
			Mapping   []entity.MappingEntry `json:"mapping"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode mapping: %v", err)
		}
		if resp.SessionID != id || len(resp.Mapping) == 0 {
			t.Errorf("unexpected mapping response: %+v", resp)
		}
	})

	t.Run("close session", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, "/v1/sessions/"+id, nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("close status = %d", rec.Code)
		}

		rec = doJSON(t, s, http.MethodPost, "/v1/sessions/"+id+"/documents",
			documentRequest{Text: "more text"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("closed session should 404, got %d", rec.Code)
		}
	})
}

func TestSessionConsistencyAcrossDocuments(t *testing.T) {
	s := testServer(t)
	id := createSession(t, s)

	process := func(text string) entity.ProcessingResult {
		rec := doJSON(t, s, http.MethodPost, "/v1/sessions/"+id+"/documents", documentRequest{Text: text})
		if rec.Code != http.StatusOK {
			t.Fatalf("process status = %d", rec.Code)
		}
		var result entity.ProcessingResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		return result
	}

	r1 := process("Invoice 4217 due under contract.")
	r2 := process("Refer again to invoice 4217 here.")

	find := func(r entity.ProcessingResult) string {
		for _, m := range r.Mapping {
			if m.CanonicalKey == "4217" {
				return m.Pseudonym
			}
		}
		t.Fatalf("no mapping for 4217 in %+v", r.Mapping)
		return ""
	}

	if find(r1) != find(r2) {
		t.Errorf("cross-document pseudonym drifted: %q vs %q", find(r1), find(r2))
	}
}

func TestUnknownSession(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/sessions/nope/documents", documentRequest{Text: "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session should 404, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/sessions/nope/mapping", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session mapping should 404, got %d", rec.Code)
	}
}

func TestPseudonymizeOneShot(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/pseudonymize",
		pseudonymizeRequest{Text: "Fee of $250.00 applies."})
	if rec.Code != http.StatusOK {
		t.Fatalf("pseudonymize status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result entity.ProcessingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if strings.Contains(result.Text, "$250.00") {
		t.Errorf("money not replaced: %q", result.Text)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/analyze",
		documentRequest{Text: "Hearing on 15 January 2024, fee $500.00."})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", rec.Code)
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode analyze: %v", err)
	}
	if len(resp.Entities) < 2 {
		t.Errorf("expected date and money entities, got %+v", resp.Entities)
	}
	if resp.Cached {
		t.Error("cache disabled but response marked cached")
	}
}

func TestInvalidBody(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/pseudonymize", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body should 400, got %d", rec.Code)
	}
}

func TestEmptyDocument(t *testing.T) {
	s := testServer(t)
	id := createSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/v1/sessions/"+id+"/documents", documentRequest{Text: ""})
	if rec.Code != http.StatusOK {
		t.Errorf("empty text should succeed with empty result, got %d", rec.Code)
	}

	var result entity.ProcessingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Text != "" || len(result.Mapping) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.NER.Backend = "none"
	cfg.Pseudonym.PatternOnly = true
	cfg.Cache.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 60
	cfg.Server.RateLimit.Burst = 2

	s, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New server failed: %v", err)
	}

	var limited bool
	for i := 0; i < 5; i++ {
		rec := doJSON(t, s, http.MethodPost, "/v1/analyze", documentRequest{Text: fmt.Sprintf("doc %d", i)})
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}
}

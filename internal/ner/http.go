package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rebeccahihi/pseudo/internal/logger"
)

// httpBackend calls a remote NER service over HTTP. The service contract is
// POST {"text": ...} -> {"entities": [{start, end, label, score}]}.
type httpBackend struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []Span `json:"entities"`
}

func newHTTPBackend(endpoint string, log *logger.Logger) *httpBackend {
	return &httpBackend{
		endpoint: endpoint,
		// Per-call deadlines come from the caller's context; the transport
		// itself carries no timeout so the extractor contract stays single.
		client: &http.Client{},
		logger: log,
	}
}

// Extract performs one synchronous extraction call.
func (b *httpBackend) Extract(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NER service returned HTTP %d", resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode extract response: %w", err)
	}

	return decoded.Entities, nil
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/justapithecus/qtrack/iox"
)

// HTTPConfig configures the default HTTP transport.
type HTTPConfig struct {
	// BaseURL is the API server's base URL, e.g. "http://localhost:3001".
	BaseURL string
	// APIKey, if set, is sent as a Bearer token.
	APIKey string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// HTTP is the default Transport, speaking the wire format in §6 over
// net/http. Connection failures on InitRun/FinishRun degrade to the
// documented offline fallback instead of propagating an error.
type HTTP struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTP builds an HTTP transport. Returns an error if BaseURL is empty.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: BaseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTP{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (h *HTTP) url(path string) string {
	return h.config.BaseURL + path
}

func (h *HTTP) newRequest(ctx context.Context, method, path string, body []byte, gzipped bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}
	return req, nil
}

// InitRun posts a run-init request. On connect failure, it returns a
// locally-generated run ID with Offline set, per the documented fallback —
// it never returns an error for unreachability.
func (h *HTTP) InitRun(ctx context.Context, reqBody RunInit) (RunInitResult, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return RunInitResult{}, fmt.Errorf("transport: marshal run init: %w", err)
	}

	req, err := h.newRequest(ctx, http.MethodPost, "/api/v1/runs", body, false)
	if err != nil {
		return RunInitResult{}, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return RunInitResult{RunID: uuid.NewString(), Offline: true}, nil
	}
	defer iox.DiscardClose(resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return RunInitResult{}, err
	}

	var result RunInitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return RunInitResult{}, fmt.Errorf("transport: decode run init response: %w", err)
	}
	return result, nil
}

// SendBatch posts an ingest batch. If raw is non-nil it is sent verbatim
// (already serialized, optionally gzipped); otherwise env is marshaled.
func (h *HTTP) SendBatch(ctx context.Context, env BatchEnvelope, raw []byte, compressed bool) (BatchResult, error) {
	payload := raw
	if payload == nil {
		var err error
		payload, err = json.Marshal(env)
		if err != nil {
			return BatchResult{}, &Error{Message: fmt.Sprintf("marshal batch: %v", err)}
		}
	}

	req, err := h.newRequest(ctx, http.MethodPost, "/api/v1/ingest/batch", payload, compressed)
	if err != nil {
		return BatchResult{}, &Error{Message: err.Error(), Retryable: false}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return BatchResult{}, classifyNetErr(err)
	}
	defer iox.DiscardClose(resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return BatchResult{}, err
	}

	var result BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return BatchResult{Status: "ok"}, nil
	}
	return result, nil
}

// FinishRun posts a run-finish request. On connect failure it returns
// {status: "pending_sync"} instead of propagating an error, matching the
// transport contract's documented offline behavior.
func (h *HTTP) FinishRun(ctx context.Context, runID, status string) (FinishResult, error) {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return FinishResult{}, fmt.Errorf("transport: marshal finish: %w", err)
	}

	req, err := h.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/v1/runs/%s/finish", runID), body, false)
	if err != nil {
		return FinishResult{}, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return FinishResult{Status: "pending_sync"}, nil
	}
	defer iox.DiscardClose(resp.Body)

	if terr := classifyStatus(resp.StatusCode); terr != nil {
		return FinishResult{}, terr
	}

	var result FinishResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return FinishResult{Status: "ok"}, nil
	}
	return result, nil
}

// Close releases idle HTTP connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// CompressPayload gzips data at the given level when len(data) meets
// minBytes; otherwise it returns data unchanged and compressed=false.
func CompressPayload(data []byte, level, minBytes int) (out []byte, compressed bool, err error) {
	if len(data) < minBytes {
		return data, false, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, false, fmt.Errorf("transport: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, false, fmt.Errorf("transport: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("transport: gzip close: %w", err)
	}
	return buf.Bytes(), true, nil
}

func classifyStatus(code int) error {
	switch {
	case code >= 500:
		return &Error{Message: fmt.Sprintf("server error: %d", code), StatusCode: code, Retryable: true}
	case code >= 400:
		return &Error{Message: fmt.Sprintf("client error: %d", code), StatusCode: code, Retryable: false}
	default:
		return nil
	}
}

func classifyNetErr(err error) error {
	return &Error{Message: fmt.Sprintf("request failed: %v", err), Retryable: true}
}

var _ Transport = (*HTTP)(nil)

// Package analysis is the client side of the remote anomaly-detection
// service: it streams a stored capture to the /predict endpoint and folds
// every way that can go wrong into three error classes.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

// Result is a successful analysis. Payload is the service's response body
// verbatim; Summary is the summary object lifted out of it.
type Result struct {
	Summary json.RawMessage
	Payload json.RawMessage
}

// Analyzer is the interface the orchestrator depends on.
type Analyzer interface {
	Analyze(ctx context.Context, h upload.Handle) (*Result, error)
}

// Config for the analysis client. Everything is injected here; the call path
// reads no ambient environment.
type Config struct {
	BaseURL string        // e.g. http://localhost:5000
	Mode    string        // ensemble mode: "union" or "intersection"
	Timeout time.Duration // per-call bound; the remote runs real models, keep this generous
}

type Client struct {
	endpoint *url.URL
	mode     string
	http     *http.Client
	envelope *jsonschema.Schema
	logger   *slog.Logger
}

// envelopeSchema is the minimum we require of a success response: a summary
// object must be present. The rest of the payload is stored untouched.
const envelopeSchema = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "object"}
	}
}`

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = "union"
	}
	if cfg.Mode != "union" && cfg.Mode != "intersection" {
		return nil, fmt.Errorf("invalid ensemble mode %q", cfg.Mode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/predict")
	if err != nil {
		return nil, fmt.Errorf("parse analysis url: %w", err)
	}

	schema, err := jsonschema.CompileString("envelope.json", envelopeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}

	return &Client{
		endpoint: endpoint,
		mode:     cfg.Mode,
		http:     &http.Client{Timeout: cfg.Timeout},
		envelope: schema,
		logger:   logger,
	}, nil
}

// Analyze uploads the capture behind h and returns the parsed result.
// One attempt, no retries: a failed call is a terminal outcome for the job
// that owns the handle, and retry policy belongs to whoever wraps it.
func (c *Client) Analyze(ctx context.Context, h upload.Handle) (*Result, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, contentType, err := c.multipartBody(h)
	if err != nil {
		c.logger.Error("analysis.request_build_error", "req_id", reqID, "error", err)
		return nil, &RequestError{Err: err}
	}

	u := *c.endpoint
	q := u.Query()
	q.Set("mode", c.mode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		c.logger.Error("analysis.request_build_error", "req_id", reqID, "error", err)
		return nil, &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("analysis.request",
		"req_id", reqID,
		"url", u.String(),
		"capture", h.Name,
		"content_length", body.Len(),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("analysis.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &UnreachableError{Err: err}
	}
	defer func(rc io.ReadCloser) {
		if cerr := rc.Close(); cerr != nil {
			c.logger.Warn("analysis.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("analysis.read_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &UnreachableError{Err: err}
	}

	c.logger.Info("analysis.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Message: remoteMessage(raw, resp.StatusCode),
		}
	}

	return c.parseEnvelope(raw, resp.StatusCode)
}

// multipartBody reads the stored capture into a multipart form under the
// "file" field, the shape the Flask side expects.
func (c *Client) multipartBody(h upload.Handle) (*bytes.Buffer, string, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", h.Name)
	if err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read capture: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) parseEnvelope(raw []byte, status int) (*Result, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &RemoteError{Status: status, Message: fmt.Sprintf("malformed analysis response: %v", err)}
	}
	if err := c.envelope.Validate(v); err != nil {
		return nil, &RemoteError{Status: status, Message: "malformed analysis response: missing summary"}
	}

	var env struct {
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &RemoteError{Status: status, Message: fmt.Sprintf("malformed analysis response: %v", err)}
	}
	return &Result{Summary: env.Summary, Payload: raw}, nil
}

// remoteMessage digs a human-readable description out of an error body.
// The deployed service answers {"error": ...}; the documented contract says
// {"message": ...}; accept either, fall back to the status code.
func remoteMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("analysis service returned status %d", status)
}

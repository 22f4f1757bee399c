package analysis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandle(t *testing.T) upload.Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flows.csv")
	require.NoError(t, os.WriteFile(path, []byte("proto,service,state\ntcp,http,FIN\n"), 0o644))
	return upload.Handle{Name: "flows.csv", Path: path}
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, Mode: "union", Timeout: timeout}, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadMode(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost:5000", Mode: "majority"}, testLogger())
	assert.Error(t, err)
}

func TestAnalyzeSuccess(t *testing.T) {
	body := `{"summary":{"total_rows":100,"anomalies":3,"mode":"union"},"results":[{"index":0,"final_label":"ANOMALY"}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "union", r.URL.Query().Get("mode"))

		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "flows.csv", hdr.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Contains(t, string(content), "proto,service,state")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Minute)
	res, err := c.Analyze(context.Background(), testHandle(t))
	require.NoError(t, err)

	assert.JSONEq(t, body, string(res.Payload))

	var sum struct {
		TotalRows int `json:"total_rows"`
		Anomalies int `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal(res.Summary, &sum))
	assert.Equal(t, 100, sum.TotalRows)
	assert.Equal(t, 3, sum.Anomalies)
}

func TestAnalyzeRemoteRejected(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "message key",
			status:      http.StatusInternalServerError,
			body:        `{"message":"model unavailable"}`,
			wantMessage: "model unavailable",
		},
		{
			name:        "error key, as the deployed service sends",
			status:      http.StatusBadRequest,
			body:        `{"error":"Failed to parse uploaded CSV"}`,
			wantMessage: "Failed to parse uploaded CSV",
		},
		{
			name:        "no usable body",
			status:      http.StatusServiceUnavailable,
			body:        "<html>gateway error</html>",
			wantMessage: "analysis service returned status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, time.Minute)
			_, err := c.Analyze(context.Background(), testHandle(t))

			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.status, remote.Status)
			assert.Equal(t, tt.wantMessage, remote.Message)
		})
	}
}

func TestAnalyzeMalformedSuccessBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "ok"},
		{name: "missing summary", body: `{"results":[]}`},
		{name: "summary not an object", body: `{"summary":"fine"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, time.Minute)
			_, err := c.Analyze(context.Background(), testHandle(t))

			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Contains(t, remote.Message, "malformed analysis response")
		})
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base, time.Minute)
	_, err := c.Analyze(context.Background(), testHandle(t))

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestAnalyzeBodyCutShort(t *testing.T) {
	// the connection drops after the status line: the declared length is
	// never delivered, so reading the body fails mid-stream
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(`{"summary":`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Minute)
	_, err := c.Analyze(context.Background(), testHandle(t))

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestAnalyzeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"summary":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 50*time.Millisecond)
	_, err := c.Analyze(context.Background(), testHandle(t))

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestAnalyzeMissingCapture(t *testing.T) {
	c := newTestClient(t, "http://localhost:5000", time.Minute)
	_, err := c.Analyze(context.Background(), upload.Handle{
		Name: "flows.csv",
		Path: filepath.Join(t.TempDir(), "gone.csv"),
	})

	var request *RequestError
	require.ErrorAs(t, err, &request)
}

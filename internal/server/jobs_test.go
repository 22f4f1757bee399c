package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/internal/analysis"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/entity"
	"github.com/adaeze-umeh/traffic-analyzer/internal/export"
	"github.com/adaeze-umeh/traffic-analyzer/internal/jobs"
	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

type memJobRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entity.Job
	creates int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{rows: map[uuid.UUID]*entity.Job{}}
}

func (m *memJobRepo) Create(_ context.Context, owner, sourceName string) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	j := &entity.Job{
		ID:         uuid.New(),
		Owner:      owner,
		SourceName: sourceName,
		Status:     string(constants.JobStatusPending),
		CreatedAt:  time.Now(),
	}
	m.rows[j.ID] = j
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FinishSuccess(_ context.Context, jobID uuid.UUID, summary, result json.RawMessage) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	now := time.Now()
	j.Status = string(constants.JobStatusDone)
	j.Summary = summary
	j.Result = result
	j.CompletedAt = &now
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FinishFailure(_ context.Context, jobID uuid.UUID, message string) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	now := time.Now()
	j.Status = string(constants.JobStatusFailed)
	j.ErrorMessage = &message
	j.CompletedAt = &now
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) GetByID(_ context.Context, jobID uuid.UUID) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListByOwner(_ context.Context, owner string) ([]*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.Job{}
	for _, j := range m.rows {
		if j.Owner == owner {
			cp := j.WithoutResult()
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) Delete(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[jobID]; !ok {
		return common.ErrNotFound
	}
	delete(m.rows, jobID)
	return nil
}

func (m *memJobRepo) put(j *entity.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[j.ID] = j
}

type apiFixture struct {
	router *gin.Engine
	repo   *memJobRepo
	close  func()
}

func newAPIFixture(t *testing.T, remote http.HandlerFunc) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := upload.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	srv := httptest.NewServer(remote)
	client, err := analysis.NewClient(analysis.Config{BaseURL: srv.URL, Mode: "union", Timeout: time.Minute}, logger)
	require.NoError(t, err)

	repo := newMemJobRepo()
	jobSvc := jobs.NewService(repo, store, client, logger)
	exportSvc := export.NewService(repo, logger)

	router := NewRouter(Deps{
		Jobs:   NewJobsHandler(jobSvc, exportSvc, 1<<20, logger),
		Logger: logger,
	})
	return apiFixture{router: router, repo: repo, close: srv.Close}
}

func okRemote(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"summary":{"total_rows":1,"anomalies":0,"mode":"union"},"results":[]}`))
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSubmitEndpoint(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := uploadRequest(t, "flows.csv", "proto,service\ntcp,http\n")
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job entity.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, string(constants.JobStatusDone), job.Status)
	assert.Equal(t, "alice", job.Owner)
	assert.Equal(t, "flows.csv", job.SourceName)
	assert.NotNil(t, job.CompletedAt)
}

func TestSubmitRejectsMissingFile(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, fx.repo.creates, "no job row may exist for a rejected submission")
}

func TestSubmitRejectsBadExtension(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := uploadRequest(t, "flows.pcap", "binary stuff")
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ".csv")
	assert.Equal(t, 0, fx.repo.creates)
}

func TestSubmitRejectsOversizedFile(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := uploadRequest(t, "flows.csv", string(bytes.Repeat([]byte("a"), 2<<20)))
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, fx.repo.creates)
}

func TestIdentityRequired(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	for _, path := range []string{"/api/jobs", "/api/jobs/" + uuid.NewString()} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		fx.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestListAndGet(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := uploadRequest(t, "flows.csv", "proto\ntcp\n")
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created entity.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// list: summary present, result omitted
	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("X-User", "alice")
	w = httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Jobs []entity.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Jobs, 1)
	assert.NotEmpty(t, listed.Jobs[0].Summary)
	assert.Empty(t, listed.Jobs[0].Result)

	// detail: full payload
	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID.String(), nil)
	req.Header.Set("X-User", "alice")
	w = httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got entity.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Result)
}

func TestGetErrors(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	other := &entity.Job{
		ID:         uuid.New(),
		Owner:      "bob",
		SourceName: "flows.csv",
		Status:     string(constants.JobStatusDone),
		CreatedAt:  time.Now(),
	}
	fx.repo.put(other)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "bad uuid", path: "/api/jobs/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown id", path: "/api/jobs/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "foreign job", path: "/api/jobs/" + other.ID.String(), want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("X-User", "alice")
			w := httptest.NewRecorder()
			fx.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestDeleteEndpoint(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	job := &entity.Job{
		ID:         uuid.New(),
		Owner:      "bob",
		SourceName: "flows.csv",
		Status:     string(constants.JobStatusDone),
		CreatedAt:  time.Now(),
	}
	fx.repo.put(job)

	// foreign caller is rejected and the job survives
	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID.String(), nil)
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err := fx.repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)

	// the owner can delete
	req = httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID.String(), nil)
	req.Header.Set("X-User", "bob")
	w = httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err = fx.repo.GetByID(context.Background(), job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExportEndpoint(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := uploadRequest(t, "flows.csv", "proto\ntcp\n")
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/export", nil)
	req.Header.Set("X-User", "alice")
	w = httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestHealthz(t *testing.T) {
	fx := newAPIFixture(t, okRemote)
	defer fx.close()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

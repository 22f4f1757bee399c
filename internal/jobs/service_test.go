package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/internal/analysis"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/entity"
	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

// fakeJobRepo is an in-memory JobRepository that also counts writes, so tests
// can assert the create-once / finish-once discipline. Like a real driver it
// refuses to write on a dead context.
type fakeJobRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*entity.Job
	creates  int
	finishes map[uuid.UUID]int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		rows:     map[uuid.UUID]*entity.Job{},
		finishes: map[uuid.UUID]int{},
	}
}

func (f *fakeJobRepo) Create(ctx context.Context, owner, sourceName string) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	j := &entity.Job{
		ID:         uuid.New(),
		Owner:      owner,
		SourceName: sourceName,
		Status:     string(constants.JobStatusPending),
		CreatedAt:  time.Now(),
	}
	f.rows[j.ID] = j
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, summary, result json.RawMessage) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	f.finishes[jobID]++
	now := time.Now()
	j.Status = string(constants.JobStatusDone)
	j.Summary = summary
	j.Result = result
	j.CompletedAt = &now
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	f.finishes[jobID]++
	now := time.Now()
	j.Status = string(constants.JobStatusFailed)
	j.ErrorMessage = &message
	j.CompletedAt = &now
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, jobID uuid.UUID) (*entity.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) ListByOwner(_ context.Context, owner string) ([]*entity.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Job
	for _, j := range f.rows {
		if j.Owner == owner {
			cp := j.WithoutResult()
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) Delete(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[jobID]; !ok {
		return common.ErrNotFound
	}
	delete(f.rows, jobID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc   *Service
	repo  *fakeJobRepo
	dir   string
	close func()
}

// newFixture wires a real store and a real analysis client against the given
// remote handler, so the whole orchestration pass runs as in production.
func newFixture(t *testing.T, remote http.HandlerFunc, timeout time.Duration) fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := upload.NewStore(dir, testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(remote)
	client, err := analysis.NewClient(analysis.Config{
		BaseURL: srv.URL,
		Mode:    "union",
		Timeout: timeout,
	}, testLogger())
	require.NoError(t, err)

	repo := newFakeJobRepo()
	return fixture{
		svc:   NewService(repo, store, client, testLogger()),
		repo:  repo,
		dir:   dir,
		close: srv.Close,
	}
}

func capture() io.Reader {
	return strings.NewReader("proto,service,state\ntcp,http,FIN\n")
}

func assertStoreEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "capture must be removed after the pass")
}

func TestSubmitDone(t *testing.T) {
	body := `{"summary":{"total_rows":100,"anomalies":3,"mode":"union"},"results":[{"index":0,"final_label":"ANOMALY"}]}`
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}, time.Minute)
	defer fx.close()

	job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
	require.NoError(t, err)

	assert.Equal(t, string(constants.JobStatusDone), job.Status)
	assert.Equal(t, "alice", job.Owner)
	assert.Equal(t, "flows.csv", job.SourceName)
	require.NotNil(t, job.CompletedAt)
	assert.Nil(t, job.ErrorMessage)
	assert.JSONEq(t, body, string(job.Result))

	var sum struct {
		Anomalies int `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal(job.Summary, &sum))
	assert.Equal(t, 3, sum.Anomalies)

	assert.Equal(t, 1, fx.repo.creates)
	assert.Equal(t, 1, fx.repo.finishes[job.ID])
	assertStoreEmpty(t, fx.dir)
}

func TestSubmitRemoteRejected(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"model unavailable"}`))
	}, time.Minute)
	defer fx.close()

	// a failed analysis is recorded on the job, not returned as an error
	job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
	require.NoError(t, err)

	assert.Equal(t, string(constants.JobStatusFailed), job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "Analysis failed:")
	assert.Contains(t, *job.ErrorMessage, "model unavailable")
	require.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.Result)

	assert.Equal(t, 1, fx.repo.finishes[job.ID])
	assertStoreEmpty(t, fx.dir)
}

func TestSubmitTimeout(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"summary":{}}`))
	}, 50*time.Millisecond)
	defer fx.close()

	job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
	require.NoError(t, err)

	assert.Equal(t, string(constants.JobStatusFailed), job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no response from analysis service")
	require.NotNil(t, job.CompletedAt)
	assertStoreEmpty(t, fx.dir)
}

func TestSubmitMissingCapture(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary":{}}`))
	}, time.Minute)
	defer fx.close()

	_, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", nil)
	assert.ErrorIs(t, err, common.ErrMissingArtifact)

	_, err = fx.svc.Submit(context.Background(), "alice", "  ", capture())
	assert.ErrorIs(t, err, common.ErrMissingArtifact)

	// no job row may exist for a rejected submission
	assert.Equal(t, 0, fx.repo.creates)
	assertStoreEmpty(t, fx.dir)
}

func TestSubmitTerminalAfterCallerGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		// the submitter disconnects while the remote call is in flight
		cancel()
		_, _ = w.Write([]byte(`{"summary":{"total_rows":1,"anomalies":0,"mode":"union"},"results":[]}`))
	}, time.Minute)
	defer fx.close()

	job, err := fx.svc.Submit(ctx, "alice", "flows.csv", capture())
	require.NoError(t, err)

	terminal := constants.JobStatus(job.Status).Terminal()
	assert.True(t, terminal, "job left in %s after the submitter disconnected", job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, fx.repo.finishes[job.ID])
	assertStoreEmpty(t, fx.dir)
}

func TestSubmitNeverLeavesPending(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError}
	for _, status := range statuses {
		fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"summary":{},"results":[]}`))
		}, time.Minute)

		job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
		require.NoError(t, err)
		terminal := constants.JobStatus(job.Status).Terminal()
		assert.True(t, terminal, "status %d left job in %s", status, job.Status)
		require.NotNil(t, job.CompletedAt)

		fx.close()
	}
}

func TestGetEnforcesOwner(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary":{},"results":[]}`))
	}, time.Minute)
	defer fx.close()

	job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
	require.NoError(t, err)

	got, err := fx.svc.Get(context.Background(), "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = fx.svc.Get(context.Background(), "mallory", job.ID)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = fx.svc.Get(context.Background(), "alice", uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteEnforcesOwner(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary":{},"results":[]}`))
	}, time.Minute)
	defer fx.close()

	job, err := fx.svc.Submit(context.Background(), "alice", "flows.csv", capture())
	require.NoError(t, err)

	err = fx.svc.Delete(context.Background(), "mallory", job.ID)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	// the job is untouched after the rejected delete
	got, err := fx.svc.Get(context.Background(), "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), got.Status)

	require.NoError(t, fx.svc.Delete(context.Background(), "alice", job.ID))
	_, err = fx.svc.Get(context.Background(), "alice", job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

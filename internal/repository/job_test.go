package repository

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestRepo(t *testing.T) JobRepository {
	t.Helper()
	client, err := OpenSQLite("file:" + t.Name() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Schema.Create(context.Background()))
	return NewJobRepository(client, testLogger())
}

func TestCreateStartsPending(t *testing.T) {
	repo := openTestRepo(t)

	job, err := repo.Create(context.Background(), "alice", "flows.csv")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, "alice", job.Owner)
	assert.Equal(t, "flows.csv", job.SourceName)
	assert.Equal(t, string(constants.JobStatusPending), job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.ErrorMessage)
}

func TestFinishSuccess(t *testing.T) {
	repo := openTestRepo(t)

	job, err := repo.Create(context.Background(), "alice", "flows.csv")
	require.NoError(t, err)

	summary := json.RawMessage(`{"total_rows":100,"anomalies":3,"mode":"union"}`)
	result := json.RawMessage(`{"summary":{"total_rows":100,"anomalies":3,"mode":"union"},"results":[]}`)

	done, err := repo.FinishSuccess(context.Background(), job.ID, summary, result)
	require.NoError(t, err)

	assert.Equal(t, string(constants.JobStatusDone), done.Status)
	assert.JSONEq(t, string(summary), string(done.Summary))
	assert.JSONEq(t, string(result), string(done.Result))
	require.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.ErrorMessage)

	// the terminal write is durable
	got, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), got.Status)
	assert.JSONEq(t, string(result), string(got.Result))
}

func TestFinishFailure(t *testing.T) {
	repo := openTestRepo(t)

	job, err := repo.Create(context.Background(), "alice", "flows.csv")
	require.NoError(t, err)

	failed, err := repo.FinishFailure(context.Background(), job.ID, "Analysis failed: model unavailable")
	require.NoError(t, err)

	assert.Equal(t, string(constants.JobStatusFailed), failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "model unavailable")
	require.NotNil(t, failed.CompletedAt)
	assert.Empty(t, failed.Summary)
	assert.Empty(t, failed.Result)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "alice", "first.csv")
	require.NoError(t, err)
	_, err = repo.FinishSuccess(ctx, first.ID,
		json.RawMessage(`{"anomalies":1}`),
		json.RawMessage(`{"summary":{"anomalies":1},"results":[{"index":0}]}`))
	require.NoError(t, err)

	_, err = repo.Create(ctx, "alice", "second.csv")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "bob", "theirs.csv")
	require.NoError(t, err)

	rows, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Equal(t, "alice", row.Owner)
		// the heavy payload stays out of list views
		assert.Empty(t, row.Result)
	}
	assert.False(t, rows[0].CreatedAt.Before(rows[1].CreatedAt), "newest first")

	var finished *struct{}
	for _, row := range rows {
		if row.SourceName == "first.csv" {
			assert.NotEmpty(t, row.Summary)
			finished = &struct{}{}
		}
	}
	require.NotNil(t, finished, "finished job must be listed")
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, "alice", "flows.csv")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, job.ID))

	_, err = repo.GetByID(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, job.ID), common.ErrNotFound)
}

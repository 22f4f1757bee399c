package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/internal/entity"
)

// listOnlyRepo satisfies JobRepository for the one method the exporter uses.
type listOnlyRepo struct {
	jobs []*entity.Job
}

func (r *listOnlyRepo) ListByOwner(_ context.Context, owner string) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, j := range r.jobs {
		if j.Owner == owner {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *listOnlyRepo) Create(context.Context, string, string) (*entity.Job, error) {
	panic("not used")
}

func (r *listOnlyRepo) FinishSuccess(context.Context, uuid.UUID, json.RawMessage, json.RawMessage) (*entity.Job, error) {
	panic("not used")
}

func (r *listOnlyRepo) FinishFailure(context.Context, uuid.UUID, string) (*entity.Job, error) {
	panic("not used")
}

func (r *listOnlyRepo) GetByID(context.Context, uuid.UUID) (*entity.Job, error) {
	panic("not used")
}

func (r *listOnlyRepo) Delete(context.Context, uuid.UUID) error {
	panic("not used")
}

func TestExportJobsXLSX(t *testing.T) {
	completed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	failMsg := "Analysis failed: model unavailable"
	repo := &listOnlyRepo{jobs: []*entity.Job{
		{
			ID:          uuid.New(),
			Owner:       "alice",
			SourceName:  "flows.csv",
			Status:      string(constants.JobStatusDone),
			Summary:     json.RawMessage(`{"total_rows":100,"anomalies":3,"mode":"union"}`),
			CreatedAt:   completed.Add(-time.Minute),
			CompletedAt: &completed,
		},
		{
			ID:           uuid.New(),
			Owner:        "alice",
			SourceName:   "bad.csv",
			Status:       string(constants.JobStatusFailed),
			ErrorMessage: &failMsg,
			CreatedAt:    completed,
			CompletedAt:  &completed,
		},
		{
			ID:         uuid.New(),
			Owner:      "bob",
			SourceName: "other.csv",
			Status:     string(constants.JobStatusDone),
			CreatedAt:  completed,
		},
	}}

	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b, err := svc.ExportJobsXLSX(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEmpty(t, b)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	const sheet = "Jobs"

	head, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Submitted", head)

	source, _ := f.GetCellValue(sheet, "B2")
	assert.Equal(t, "flows.csv", source)
	status, _ := f.GetCellValue(sheet, "C2")
	assert.Equal(t, "DONE", status)
	anomalies, _ := f.GetCellValue(sheet, "D2")
	assert.Equal(t, "3", anomalies)
	totalRows, _ := f.GetCellValue(sheet, "E2")
	assert.Equal(t, "100", totalRows)

	status3, _ := f.GetCellValue(sheet, "C3")
	assert.Equal(t, "FAILED", status3)
	errCell, _ := f.GetCellValue(sheet, "F3")
	assert.Contains(t, errCell, "model unavailable")

	// only alice's jobs are exported
	empty, _ := f.GetCellValue(sheet, "B4")
	assert.Empty(t, empty)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "abc", truncate("abc", 0))

	// a cut landing inside a multi-byte rune must back up, not split it
	s := strings.Repeat("é", 100)
	for _, n := range []int{141, 142} {
		out := truncate(s, n)
		assert.True(t, utf8.ValidString(out), "truncate(%d) produced invalid UTF-8", n)
		assert.True(t, strings.HasSuffix(out, "…"))
		assert.LessOrEqual(t, len(out), n+len("…"))
	}
}

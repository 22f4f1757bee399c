package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/gen/ent"
	"github.com/adaeze-umeh/traffic-analyzer/gen/ent/job"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/entity"
)

// JobRepository owns the write path for job rows. A job is written exactly
// twice: once at creation (PENDING) and once when it reaches a terminal state.
type JobRepository interface {
	Create(ctx context.Context, owner, sourceName string) (*entity.Job, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, summary, result json.RawMessage) (*entity.Job, error)
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) (*entity.Job, error)
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.Job, error)
	ListByOwner(ctx context.Context, owner string) ([]*entity.Job, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}

type jobRepo struct {
	ent *ent.Client
	log *slog.Logger
}

func NewJobRepository(entc *ent.Client, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{ent: entc, log: log}
}

func (r *jobRepo) Create(ctx context.Context, owner, sourceName string) (*entity.Job, error) {
	row, err := r.ent.Job.
		Create().
		SetOwner(owner).
		SetSourceName(sourceName).
		SetStatus(string(constants.JobStatusPending)).
		Save(ctx)
	if err != nil {
		r.log.Error("job create failed", "owner", owner, "source", sourceName, "err", err)
		return nil, common.WrapError(err, "create job")
	}
	r.log.Info("job created", "job_id", row.ID, "owner", owner, "source", sourceName)
	return toEntity(row), nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, summary, result json.RawMessage) (*entity.Job, error) {
	row, err := r.ent.Job.
		UpdateOneID(jobID).
		SetStatus(string(constants.JobStatusDone)).
		SetSummary(summary).
		SetResult(result).
		SetCompletedAt(time.Now()).
		Save(ctx)
	if err != nil {
		r.log.Error("job finish(DONE) failed", "job_id", jobID, "err", err)
		return nil, common.WrapError(err, "finish job")
	}
	r.log.Info("job finished (DONE)", "job_id", jobID)
	return toEntity(row), nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) (*entity.Job, error) {
	row, err := r.ent.Job.
		UpdateOneID(jobID).
		SetStatus(string(constants.JobStatusFailed)).
		SetErrorMessage(message).
		SetCompletedAt(time.Now()).
		Save(ctx)
	if err != nil {
		r.log.Error("job finish(FAILED) failed", "job_id", jobID, "err", err)
		return nil, common.WrapError(err, "finish job")
	}
	r.log.Warn("job finished (FAILED)", "job_id", jobID, "error", message)
	return toEntity(row), nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	row, err := r.ent.Job.Get(ctx, jobID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.ErrNotFound
		}
		r.log.Error("job get failed", "job_id", jobID, "err", err)
		return nil, common.WrapError(err, "get job")
	}
	return toEntity(row), nil
}

// ListByOwner returns the owner's jobs newest first. The result payload is not
// selected; list views only need the summary.
func (r *jobRepo) ListByOwner(ctx context.Context, owner string) ([]*entity.Job, error) {
	rows, err := r.ent.Job.
		Query().
		Where(job.Owner(owner)).
		Order(ent.Desc(job.FieldCreatedAt)).
		Select(
			job.FieldID,
			job.FieldOwner,
			job.FieldSourceName,
			job.FieldStatus,
			job.FieldSummary,
			job.FieldErrorMessage,
			job.FieldCreatedAt,
			job.FieldCompletedAt,
		).
		All(ctx)
	if err != nil {
		r.log.Error("job list failed", "owner", owner, "err", err)
		return nil, common.WrapError(err, "list jobs")
	}
	out := make([]*entity.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntity(row))
	}
	return out, nil
}

func (r *jobRepo) Delete(ctx context.Context, jobID uuid.UUID) error {
	if err := r.ent.Job.DeleteOneID(jobID).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return common.ErrNotFound
		}
		r.log.Error("job delete failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "delete job")
	}
	r.log.Info("job deleted", "job_id", jobID)
	return nil
}

func toEntity(row *ent.Job) *entity.Job {
	return &entity.Job{
		ID:           row.ID,
		Owner:        row.Owner,
		SourceName:   row.SourceName,
		Status:       row.Status,
		Summary:      row.Summary,
		Result:       row.Result,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		CompletedAt:  row.CompletedAt,
	}
}

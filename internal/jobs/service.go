// Package jobs drives a submitted capture through its lifecycle:
// PENDING at creation, then exactly one transition to DONE or FAILED.
package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/adaeze-umeh/traffic-analyzer/internal/analysis"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/entity"
	"github.com/adaeze-umeh/traffic-analyzer/internal/repository"
	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

type Service struct {
	repo   repository.JobRepository
	store  *upload.Store
	client analysis.Analyzer
	logger *slog.Logger
}

func NewService(repo repository.JobRepository, store *upload.Store, client analysis.Analyzer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, store: store, client: client, logger: logger}
}

// Submit runs one capture through analysis end to end and returns the job in
// a terminal state. A failed analysis is not an error here: the failure is
// recorded on the job and the job comes back as data. Only a missing capture
// or an infrastructure fault (storage, database) surfaces as an error.
func (s *Service) Submit(ctx context.Context, owner, sourceName string, capture io.Reader) (*entity.Job, error) {
	if capture == nil || strings.TrimSpace(sourceName) == "" {
		return nil, common.ErrMissingArtifact
	}

	handle, err := s.store.Save(sourceName, capture)
	if err != nil {
		return nil, common.WrapError(err, "store capture")
	}
	// The handle is released on every path out of this function, success or
	// not. Remove is idempotent and never fails.
	defer s.store.Remove(handle)

	job, err := s.repo.Create(ctx, owner, sourceName)
	if err != nil {
		return nil, err
	}

	// Once the row exists the pass must reach a terminal state even if the
	// submitter goes away. The rest of the pass runs detached from the
	// caller's cancellation; the remote call stays bounded by the client's
	// own timeout.
	ctx = context.WithoutCancel(ctx)

	res, aerr := s.client.Analyze(ctx, handle)
	if aerr != nil {
		s.logger.Warn("analysis failed", "job_id", job.ID, "owner", owner, "err", aerr)
		return s.repo.FinishFailure(ctx, job.ID, "Analysis failed: "+failureMessage(aerr))
	}
	return s.repo.FinishSuccess(ctx, job.ID, res.Summary, res.Payload)
}

// List returns the owner's jobs without the heavy result payloads.
func (s *Service) List(ctx context.Context, owner string) ([]*entity.Job, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// Get returns one job with its full payload, if the caller owns it.
func (s *Service) Get(ctx context.Context, owner string, id uuid.UUID) (*entity.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Owner != owner {
		return nil, common.ErrUnauthorized
	}
	return job, nil
}

// Delete removes one job, if the caller owns it.
func (s *Service) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Owner != owner {
		return common.ErrUnauthorized
	}
	return s.repo.Delete(ctx, id)
}

// failureMessage maps each failure class to the line recorded on the job.
func failureMessage(err error) string {
	var remote *analysis.RemoteError
	var unreachable *analysis.UnreachableError
	var request *analysis.RequestError
	switch {
	case errors.As(err, &remote):
		return remote.Message
	case errors.As(err, &unreachable):
		return unreachable.Error()
	case errors.As(err, &request):
		return request.Error()
	}
	return err.Error()
}

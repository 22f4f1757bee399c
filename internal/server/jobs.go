package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adaeze-umeh/traffic-analyzer/constants"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/export"
	"github.com/adaeze-umeh/traffic-analyzer/internal/jobs"
)

type JobsHandler struct {
	svc            *jobs.Service
	export         *export.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewJobsHandler(svc *jobs.Service, exp *export.Service, maxUploadBytes int64, logger *slog.Logger) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.MaxUploadBytes
	}
	return &JobsHandler{svc: svc, export: exp, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Submit handles a multipart capture upload and blocks until the job is
// terminal. The response is always a job resource: DONE with results or
// FAILED with a message. Ingress checks (presence, size, extension) happen
// here, before any job row exists.
func (h *JobsHandler) Submit(c *gin.Context) {
	owner := ownerFrom(c)

	fh, err := c.FormFile("file")
	if err != nil {
		h.writeError(c, common.ErrMissingArtifact)
		return
	}
	if fh.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes)})
		return
	}
	ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
	if !constants.AllowedExt(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv uploads are supported"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, common.WrapError(err, "open upload"))
		return
	}
	defer f.Close()

	job, err := h.svc.Submit(c.Request.Context(), owner, filepath.Base(fh.Filename), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobsHandler) List(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func (h *JobsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id must be a UUID"})
		return
	}
	job, err := h.svc.Get(c.Request.Context(), ownerFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id must be a UUID"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), ownerFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *JobsHandler) Export(c *gin.Context) {
	b, err := h.export.ExportJobsXLSX(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

func (h *JobsHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrMissingArtifact):
		c.JSON(http.StatusBadRequest, gin.H{"error": common.ErrMissingArtifact.Error()})
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this job"})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Package api exposes scan submission and retrieval over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/CZERTAINLY/Prospector/internal/model"
	"github.com/CZERTAINLY/Prospector/internal/report"
	"github.com/CZERTAINLY/Prospector/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Store is the slice of the job store the API needs.
type Store interface {
	CreateQueued(ctx context.Context, repoURL, ref string, tool model.Tool) (model.Job, error)
	Find(ctx context.Context, id uuid.UUID) (model.Job, error)
	Notify(ctx context.Context, channel string, id uuid.UUID) error
}

type Handler struct {
	Jobs    Store
	Channel string
}

// Router wires the HTTP routes. channel is the NOTIFY channel scans are
// announced on.
func Router(jobs Store, channel string) *gin.Engine {
	h := &Handler{Jobs: jobs, Channel: channel}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "prospector"})
	})

	v1 := r.Group("/api/v1")
	{
		scans := v1.Group("/scans")
		{
			scans.POST("", h.CreateScan)
			scans.GET("/:id", h.GetScan)
			scans.GET("/:id/cbom", h.GetInventory)
			scans.GET("/:id/report", h.GetReport)
		}
	}
	return r
}

type createScanRequest struct {
	RepoURL string `json:"repoUrl" binding:"required"`
	Branch  string `json:"branch"`
	Ref     string `json:"ref"`
	Tool    string `json:"tool"`
}

// CreateScan handles POST /api/v1/scans. The job is queued and
// announced; the scan itself runs in a worker. Branch takes precedence
// when both branch and ref are submitted.
func (h *Handler) CreateScan(c *gin.Context) {
	var req createScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	tool, err := model.ParseTool(req.Tool)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref := req.Branch
	if ref == "" {
		ref = req.Ref
	}

	ctx := c.Request.Context()
	job, err := h.Jobs.CreateQueued(ctx, req.RepoURL, ref, tool)
	if err != nil {
		slog.ErrorContext(ctx, "creating scan job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create scan"})
		return
	}

	// a lost notification is recovered by the worker sweep, the job is
	// already durable at this point
	if err := h.Jobs.Notify(ctx, h.Channel, job.ID); err != nil {
		slog.WarnContext(ctx, "notifying workers", "job", job.ID, "error", err)
	}

	slog.InfoContext(ctx, "scan queued", "job", job.ID, "repo", job.RepoURL, "ref", job.Ref, "tool", job.Tool)
	c.JSON(http.StatusAccepted, gin.H{"id": job.ID, "status": job.Status})
}

// GetScan handles GET /api/v1/scans/:id.
func (h *Handler) GetScan(c *gin.Context) {
	job, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetInventory handles GET /api/v1/scans/:id/cbom. The persisted
// document is served verbatim; a scan without one yields 204.
func (h *Handler) GetInventory(c *gin.Context) {
	job, ok := h.find(c)
	if !ok {
		return
	}
	if job.InventoryDocument == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(*job.InventoryDocument))
}

// GetReport handles GET /api/v1/scans/:id/report.
func (h *Handler) GetReport(c *gin.Context) {
	job, ok := h.find(c)
	if !ok {
		return
	}
	merged, err := report.Merged(job)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "rendering report", "job", job.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render report"})
		return
	}
	c.Data(http.StatusOK, "application/json", merged)
}

func (h *Handler) find(c *gin.Context) (model.Job, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a valid UUID"})
		return model.Job{}, false
	}

	job, err := h.Jobs.Find(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return model.Job{}, false
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "loading scan job", "job", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scan"})
		return model.Job{}, false
	}
	return job, true
}

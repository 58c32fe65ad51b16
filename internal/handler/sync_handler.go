package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync/internal/dto"
	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/internal/service"
	"github.com/noah-isme/fieldsync/pkg/response"
)

type syncRunner interface {
	RunOnce(ctx context.Context) error
}

type statsProvider interface {
	Stats(ctx context.Context) (*models.MutationStats, error)
}

type metricsSnapshotter interface {
	Snapshot() service.MetricsSnapshot
}

// SyncHandler exposes the drain worker's status and a manual trigger.
type SyncHandler struct {
	runner  syncRunner
	stats   statsProvider
	metrics metricsSnapshotter
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(runner syncRunner, stats statsProvider, metrics metricsSnapshotter) *SyncHandler {
	return &SyncHandler{runner: runner, stats: stats, metrics: metrics}
}

// Status godoc
// @Summary Report outbox depth and worker progress
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.SyncStatusResponse{Stats: stats}
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		resp.Applied = snapshot.Applied
		resp.Failed = snapshot.Failed
		resp.LastRunAt = snapshot.LastRunAt
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Run godoc
// @Summary Trigger a one-shot drain pass
// @Tags Sync
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /sync/run [post]
func (h *SyncHandler) Run(c *gin.Context) {
	if err := h.runner.RunOnce(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "completed"}, nil)
}

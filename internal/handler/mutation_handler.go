package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync/internal/dto"
	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
	"github.com/noah-isme/fieldsync/pkg/response"
)

type mutationService interface {
	Enqueue(ctx context.Context, req dto.EnqueueMutationRequest) (*models.SubmissionMutationRecord, error)
	List(ctx context.Context, query dto.MutationQuery) ([]models.SubmissionMutationRecord, error)
	Get(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error)
	Retry(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error)
	Discard(ctx context.Context, id int64) error
}

// MutationHandler exposes REST endpoints for the mutation outbox.
type MutationHandler struct {
	service mutationService
}

// NewMutationHandler constructs the handler.
func NewMutationHandler(service mutationService) *MutationHandler {
	return &MutationHandler{service: service}
}

// Enqueue godoc
// @Summary Record a local change in the outbox
// @Tags Mutations
// @Accept json
// @Produce json
// @Param payload body dto.EnqueueMutationRequest true "Mutation payload"
// @Success 201 {object} response.Envelope
// @Router /mutations [post]
func (h *MutationHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid mutation payload"))
		return
	}
	record, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// List godoc
// @Summary List outbox records
// @Tags Mutations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param submissionId query string false "Submission ID"
// @Param loiId query string false "Location of interest ID"
// @Param type query string false "Mutation type"
// @Success 200 {object} response.Envelope
// @Router /mutations [get]
func (h *MutationHandler) List(c *gin.Context) {
	query := dto.MutationQuery{
		SubmissionID:         strings.TrimSpace(c.Query("submissionId")),
		LocationOfInterestID: strings.TrimSpace(c.Query("loiId")),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.MutationType(strings.ToUpper(rawType))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.SyncStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.SyncStatus(part))
		}
		query.Status = statuses
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if limit, err := strconv.Atoi(rawLimit); err == nil {
			query.Limit = limit
		}
	}
	if rawOffset := c.Query("offset"); rawOffset != "" {
		if offset, err := strconv.Atoi(rawOffset); err == nil {
			query.Offset = offset
		}
	}
	records, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Get one outbox record
// @Tags Mutations
// @Produce json
// @Param id path int true "Mutation ID"
// @Success 200 {object} response.Envelope
// @Router /mutations/{id} [get]
func (h *MutationHandler) Get(c *gin.Context) {
	id, ok := mutationID(c)
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Retry godoc
// @Summary Re-queue a FAILED record for another attempt
// @Tags Mutations
// @Produce json
// @Param id path int true "Mutation ID"
// @Success 200 {object} response.Envelope
// @Router /mutations/{id}/retry [post]
func (h *MutationHandler) Retry(c *gin.Context) {
	id, ok := mutationID(c)
	if !ok {
		return
	}
	record, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Discard godoc
// @Summary Discard an outbox record
// @Tags Mutations
// @Param id path int true "Mutation ID"
// @Success 204
// @Router /mutations/{id} [delete]
func (h *MutationHandler) Discard(c *gin.Context) {
	id, ok := mutationID(c)
	if !ok {
		return
	}
	if err := h.service.Discard(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func mutationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mutation id must be an integer"))
		return 0, false
	}
	return id, true
}

package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync/internal/models"
	"github.com/noah-isme/fieldsync/pkg/response"
)

type surveyService interface {
	ImportFromYAML(ctx context.Context, r io.Reader) (*models.Survey, error)
	Get(ctx context.Context, id string) (*models.Survey, error)
}

// SurveyHandler exposes survey schema import and lookup.
type SurveyHandler struct {
	service surveyService
}

// NewSurveyHandler constructs the handler.
func NewSurveyHandler(service surveyService) *SurveyHandler {
	return &SurveyHandler{service: service}
}

// Import godoc
// @Summary Import a survey definition (YAML body)
// @Tags Surveys
// @Accept text/yaml
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /surveys/import [post]
func (h *SurveyHandler) Import(c *gin.Context) {
	survey, err := h.service.ImportFromYAML(c.Request.Context(), c.Request.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, survey, nil)
}

// Get godoc
// @Summary Get a survey definition
// @Tags Surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} response.Envelope
// @Router /surveys/{id} [get]
func (h *SurveyHandler) Get(c *gin.Context) {
	survey, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, survey, nil)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldsync/internal/dto"
	"github.com/noah-isme/fieldsync/internal/models"
	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
	"github.com/noah-isme/fieldsync/pkg/response"
)

type mutationServiceMock struct {
	enqueueResp *models.SubmissionMutationRecord
	enqueueErr  error
	listResp    []models.SubmissionMutationRecord
	getResp     *models.SubmissionMutationRecord
	getErr      error
	retryErr    error
	discardErr  error

	lastQuery dto.MutationQuery
}

func (m *mutationServiceMock) Enqueue(ctx context.Context, req dto.EnqueueMutationRequest) (*models.SubmissionMutationRecord, error) {
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return m.enqueueResp, nil
}

func (m *mutationServiceMock) List(ctx context.Context, query dto.MutationQuery) ([]models.SubmissionMutationRecord, error) {
	m.lastQuery = query
	return m.listResp, nil
}

func (m *mutationServiceMock) Get(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResp, nil
}

func (m *mutationServiceMock) Retry(ctx context.Context, id int64) (*models.SubmissionMutationRecord, error) {
	if m.retryErr != nil {
		return nil, m.retryErr
	}
	return m.getResp, nil
}

func (m *mutationServiceMock) Discard(ctx context.Context, id int64) error {
	return m.discardErr
}

func TestMutationHandlerEnqueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	record := &models.SubmissionMutationRecord{ID: 1, SubmissionID: "sub-1", SyncStatus: models.SyncStatusPending}
	handler := NewMutationHandler(&mutationServiceMock{enqueueResp: record})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.EnqueueMutationRequest{
		Type:                 "UPDATE",
		SurveyID:             "survey-1",
		LocationOfInterestID: "loi-1",
		JobID:                "job-1",
		SubmissionID:         "sub-1",
		Deltas:               json.RawMessage(`{"nameField":"Oak"}`),
	})
	req, _ := http.NewRequest(http.MethodPost, "/mutations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Enqueue(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestMutationHandlerEnqueueInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/mutations", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Enqueue(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMutationHandlerEnqueueSchemaMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{
		enqueueErr: appErrors.Clone(appErrors.ErrSchemaMismatch, "task \"ghostField\" not in schema"),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.EnqueueMutationRequest{Type: "UPDATE"})
	req, _ := http.NewRequest(http.MethodPost, "/mutations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Enqueue(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.Equal(t, "SCHEMA_MISMATCH", envelope.Error.Code)
}

func TestMutationHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &mutationServiceMock{}
	handler := NewMutationHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/mutations?status=pending,failed&submissionId=sub-1&type=update&limit=10&offset=5", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []models.SyncStatus{models.SyncStatusPending, models.SyncStatusFailed}, mock.lastQuery.Status)
	require.Equal(t, "sub-1", mock.lastQuery.SubmissionID)
	require.Equal(t, models.MutationTypeUpdate, mock.lastQuery.Type)
	require.Equal(t, 10, mock.lastQuery.Limit)
	require.Equal(t, 5, mock.lastQuery.Offset)
}

func TestMutationHandlerGetBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/mutations/abc", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMutationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{getErr: appErrors.ErrNotFound})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/mutations/99", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "99"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMutationHandlerRetryConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{
		retryErr: appErrors.Clone(appErrors.ErrConflict, "only FAILED mutations can be retried"),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/mutations/3/retry", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	handler.Retry(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestMutationHandlerDiscard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMutationHandler(&mutationServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/mutations/3", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	handler.Discard(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}

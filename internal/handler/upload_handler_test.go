package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/neattend/neattend-api/internal/dto"
	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/middleware"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/service"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type uploadServiceMock struct {
	summary     *dto.UploadSummary
	err         error
	studentReqs []service.UploadRequest
	instructorReqs []service.UploadRequest
}

func (m *uploadServiceMock) UploadStudents(ctx context.Context, req service.UploadRequest) (*dto.UploadSummary, error) {
	m.studentReqs = append(m.studentReqs, req)
	return m.summary, m.err
}

func (m *uploadServiceMock) UploadInstructors(ctx context.Context, req service.UploadRequest) (*dto.UploadSummary, error) {
	m.instructorReqs = append(m.instructorReqs, req)
	return m.summary, m.err
}

func multipartUpload(t *testing.T, path, filename string, content []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	return c, w
}

func TestUploadHandlerStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &uploadServiceMock{summary: &dto.UploadSummary{
		TotalRows: 3, CreatedCount: 2, FailedCount: 1,
		RowErrors: []ingest.RowError{{RowIndex: 1, Errors: []string{"Email Address is required"}}},
	}}
	handler := NewUploadHandler(mockSvc)

	c, w := multipartUpload(t, "/uploads/students", "students.csv", []byte("header\nrow\n"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "admin-1", Email: "registrar@neattend.edu", FullName: "Registrar", Role: models.RoleAdmin,
	})

	handler.Students(c)
	require.Equal(t, http.StatusOK, w.Code, "row failures never change the status code")

	var envelope struct {
		Data dto.UploadSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 3, envelope.Data.TotalRows)
	require.Len(t, envelope.Data.RowErrors, 1)

	require.Len(t, mockSvc.studentReqs, 1)
	sent := mockSvc.studentReqs[0]
	require.Equal(t, "students.csv", sent.Filename)
	require.Equal(t, []byte("header\nrow\n"), sent.Data)
	require.Equal(t, "admin-1", sent.ActorID)
	require.Equal(t, "registrar@neattend.edu", sent.ActorEmail)
	require.False(t, sent.DryRun)
}

func TestUploadHandlerDryRunFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &uploadServiceMock{summary: &dto.UploadSummary{DryRun: true}}
	handler := NewUploadHandler(mockSvc)

	c, w := multipartUpload(t, "/uploads/instructors?dryRun=true", "instructors.xlsx", []byte{0x50, 0x4b})
	handler.Instructors(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mockSvc.instructorReqs, 1)
	require.True(t, mockSvc.instructorReqs[0].DryRun)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(&uploadServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/uploads/students", nil)
	c.Request = req

	handler.Students(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerFileLevelFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &uploadServiceMock{err: appErrors.ErrFileTooLarge}
	handler := NewUploadHandler(mockSvc)

	c, w := multipartUpload(t, "/uploads/students", "students.csv", []byte("x"))
	handler.Students(c)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

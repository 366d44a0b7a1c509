package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neattend/neattend-api/internal/dto"
	"github.com/neattend/neattend-api/internal/service"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
	"github.com/neattend/neattend-api/pkg/response"
)

type uploadService interface {
	UploadStudents(ctx context.Context, req service.UploadRequest) (*dto.UploadSummary, error)
	UploadInstructors(ctx context.Context, req service.UploadRequest) (*dto.UploadSummary, error)
}

// UploadHandler exposes the bulk onboarding endpoints. Files arrive as
// multipart form data under the "file" field.
type UploadHandler struct {
	uploads uploadService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(uploads uploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) buildRequest(c *gin.Context) (service.UploadRequest, error) {
	var req service.UploadRequest

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "could not open uploaded file")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "could not read uploaded file")
	}

	req.Filename = fileHeader.Filename
	req.Data = data
	req.DryRun = c.Query("dryRun") == "true"
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
		req.ActorName = claims.FullName
		req.ActorEmail = claims.Email
	}
	return req, nil
}

// Students godoc
// @Summary Bulk onboard students from a CSV or XLSX sheet
// @Description Parses the sheet, creates student records with login accounts, and returns a per-row summary. Rows that fail validation or persistence are reported in rowErrors; the response is 200 even when every row failed. Set dryRun=true to validate without persisting.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Onboarding sheet (.csv or .xlsx)"
// @Param dryRun query bool false "Validate only, do not persist"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /uploads/students [post]
func (h *UploadHandler) Students(c *gin.Context) {
	req, err := h.buildRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.uploads.UploadStudents(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Instructors godoc
// @Summary Bulk onboard instructors from a CSV or XLSX sheet
// @Description Parses the sheet, creates instructor records with login accounts and subject assignments, and returns a per-row summary. Set dryRun=true to validate without persisting.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Onboarding sheet (.csv or .xlsx)"
// @Param dryRun query bool false "Validate only, do not persist"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /uploads/instructors [post]
func (h *UploadHandler) Instructors(c *gin.Context) {
	req, err := h.buildRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.uploads.UploadInstructors(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

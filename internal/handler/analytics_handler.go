package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neattend/neattend-api/internal/middleware"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/service"
	"github.com/neattend/neattend-api/pkg/response"
)

// AnalyticsHandler exposes dashboard analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func analyticsFilter(c *gin.Context) models.AnalyticsAttendanceFilter {
	return models.AnalyticsAttendanceFilter{
		SchoolYear: c.Query("schoolYear"),
		Semester:   c.Query("semester"),
		SubjectID:  c.Query("subjectId"),
		DateFrom:   parseDateQuery(c, "dateFrom"),
		DateTo:     parseDateQuery(c, "dateTo"),
	}
}

// Overview godoc
// @Summary Headline counts for the admin dashboard
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, hit, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, overview, nil)
}

// Attendance godoc
// @Summary Per-subject attendance aggregates
// @Tags Analytics
// @Produce json
// @Param schoolYear query string false "Filter by school year"
// @Param semester query string false "Filter by semester"
// @Param subjectId query string false "Filter by subject"
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/attendance [get]
func (h *AnalyticsHandler) Attendance(c *gin.Context) {
	summaries, hit, err := h.analytics.Attendance(c.Request.Context(), analyticsFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Standings godoc
// @Summary Students ranked by attendance percentage, lowest first
// @Tags Analytics
// @Produce json
// @Param schoolYear query string false "Filter by school year"
// @Param semester query string false "Filter by semester"
// @Param subjectId query string false "Filter by subject"
// @Param limit query int false "Maximum rows, default 20"
// @Success 200 {object} response.Envelope
// @Router /analytics/standings [get]
func (h *AnalyticsHandler) Standings(c *gin.Context) {
	limit := 20
	if raw, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && raw > 0 {
		limit = raw
	}
	standings, hit, err := h.analytics.Standings(c.Request.Context(), analyticsFilter(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, standings, nil)
}

// System godoc
// @Summary Runtime instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}

package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/service"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
	"github.com/osa-scan/dresscode-api/pkg/response"
)

// ViolationHandler exposes the violation record endpoints.
type ViolationHandler struct {
	lifecycle *service.LifecycleService
	query     *service.QueryService
	evidence  *service.EvidenceService
	exports   *service.ExportService
	logger    *zap.Logger
}

// NewViolationHandler constructs the handler.
func NewViolationHandler(lifecycle *service.LifecycleService, query *service.QueryService, evidence *service.EvidenceService, exports *service.ExportService, logger *zap.Logger) *ViolationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViolationHandler{
		lifecycle: lifecycle,
		query:     query,
		evidence:  evidence,
		exports:   exports,
		logger:    logger,
	}
}

// Create godoc
// @Summary Log a dress-code violation
// @Description Records a new pending violation. Accepts JSON or multipart form with an optional photo under "image".
// @Tags violations
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /violations [post]
func (h *ViolationHandler) Create(c *gin.Context) {
	var req service.CreateViolationRequest

	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		parsed, err := h.parseMultipartCreate(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		req = *parsed
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	rec, err := h.lifecycle.Create(c.Request.Context(), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.query.InvalidateStats(c.Request.Context())
	response.Created(c, rec)
}

func (h *ViolationHandler) parseMultipartCreate(c *gin.Context) (*service.CreateViolationRequest, error) {
	req := &service.CreateViolationRequest{
		Subject: models.Subject{
			Name:      c.PostForm("student_name"),
			YearLevel: c.PostForm("year_level"),
			Course:    c.PostForm("course"),
		},
		ViolationType: c.PostForm("violation_type"),
		Notes:         c.PostForm("notes"),
	}
	if raw := c.PostForm("occurred_at"); raw != "" {
		occurredAt, err := parseTimestamp(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "occurred_at must be RFC3339 or YYYY-MM-DD")
		}
		req.OccurredAt = &occurredAt
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return req, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid image upload")
	}
	defer file.Close()

	uploaded, err := h.evidence.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		return nil, err
	}
	req.EvidenceID = &uploaded.Key
	return req, nil
}

// List godoc
// @Summary List violations
// @Description Returns non-deleted violations, newest first, with offense ordinals.
// @Tags violations
// @Produce json
// @Param status query string false "Filter by status"
// @Param date_from query string false "Occurred on or after (RFC3339)"
// @Param date_to query string false "Occurred on or before (RFC3339)"
// @Param search query string false "Match against student, violation or course"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /violations [get]
func (h *ViolationHandler) List(c *gin.Context) {
	filter, err := parseViolationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.query.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Records, &result.Pagination)
}

// Today godoc
// @Summary List today's violations
// @Description Returns violations from the current campus day.
// @Tags violations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/today [get]
func (h *ViolationHandler) Today(c *gin.Context) {
	records, err := h.query.ListToday(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Stats godoc
// @Summary Violation counters
// @Description Returns the dashboard counters over non-deleted records.
// @Tags violations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/stats [get]
func (h *ViolationHandler) Stats(c *gin.Context) {
	stats, err := h.query.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Analytics godoc
// @Summary Violation breakdown
// @Description Returns totals plus per-day and per-type counts over non-deleted records.
// @Tags violations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/analytics [get]
func (h *ViolationHandler) Analytics(c *gin.Context) {
	analytics, err := h.query.Analytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// Export godoc
// @Summary Export violations
// @Description Downloads the filtered listing as CSV or PDF.
// @Tags violations
// @Produce text/csv,application/pdf
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /violations/export [get]
func (h *ViolationHandler) Export(c *gin.Context) {
	filter, err := parseViolationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Export(c.Request.Context(), c.Query("format"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+file.Filename)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Get godoc
// @Summary Fetch one violation
// @Description Returns the record by ID. Soft-deleted records are served flagged for audit.
// @Tags violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/{id} [get]
func (h *ViolationHandler) Get(c *gin.Context) {
	rec, err := h.query.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Update godoc
// @Summary Update a violation
// @Description Applies a partial update. Soft-deleted records cannot be updated.
// @Tags violations
// @Accept json
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/{id} [patch]
func (h *ViolationHandler) Update(c *gin.Context) {
	var req service.UpdateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	rec, err := h.lifecycle.UpdateFields(c.Request.Context(), c.Param("id"), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.query.InvalidateStats(c.Request.Context())
	response.JSON(c, http.StatusOK, rec, nil)
}

// Delete godoc
// @Summary Soft-delete a violation
// @Description Hides the record from listings and stats. Repeating the call is a no-op.
// @Tags violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/{id} [delete]
func (h *ViolationHandler) Delete(c *gin.Context) {
	rec, err := h.lifecycle.SoftDelete(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.query.InvalidateStats(c.Request.Context())
	response.JSON(c, http.StatusOK, rec, nil)
}

// Restore godoc
// @Summary Restore a soft-deleted violation
// @Tags violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/{id}/restore [post]
func (h *ViolationHandler) Restore(c *gin.Context) {
	rec, err := h.lifecycle.Undelete(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.query.InvalidateStats(c.Request.Context())
	response.JSON(c, http.StatusOK, rec, nil)
}

// LatestEvidence godoc
// @Summary Latest captured photo
// @Description Returns the most recently uploaded evidence descriptor.
// @Tags violations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /violations/evidence/latest [get]
func (h *ViolationHandler) LatestEvidence(c *gin.Context) {
	latest, err := h.evidence.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, latest, nil)
}

// DownloadEvidence godoc
// @Summary Download a violation photo
// @Description Streams the photo referenced by a signed token.
// @Tags violations
// @Produce image/jpeg,image/png
// @Param token path string true "Signed evidence token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /violations/evidence/{token} [get]
func (h *ViolationHandler) DownloadEvidence(c *gin.Context) {
	rc, contentType, err := h.evidence.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func parseViolationFilter(c *gin.Context) (models.ViolationFilter, error) {
	filter := models.ViolationFilter{
		Search: strings.TrimSpace(c.Query("search")),
	}

	if raw := c.Query("status"); raw != "" {
		status := models.ViolationStatus(raw)
		if !models.ValidStatus(status) {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status value")
		}
		filter.Status = &status
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := parseTimestamp(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_from must be RFC3339 or YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := parseTimestamp(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_to must be RFC3339 or YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "page_size must be a positive integer")
		}
		filter.PageSize = size
	}
	return filter, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

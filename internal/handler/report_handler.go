package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clearview-lms/clearview-api/internal/dto"
	"github.com/clearview-lms/clearview-api/internal/middleware"
	"github.com/clearview-lms/clearview-api/internal/service"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
	"github.com/clearview-lms/clearview-api/pkg/response"
)

// retryAfterSeconds is the hint returned with not-ready responses. The
// next refresh cycle is at most one interval away; a short poll beats
// hammering.
const retryAfterSeconds = 60

// ReportHandler exposes the category completion report endpoints.
type ReportHandler struct {
	reports *service.ReportService
	exports *service.ExportService
}

// NewReportHandler constructs the report handler.
func NewReportHandler(reports *service.ReportService, exports *service.ExportService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// ListCategories returns every known category.
func (h *ReportHandler) ListCategories(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	categories, err := h.reports.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories)
}

// CategoryReport returns the completion report for one category, either
// the direct view or, with extended=true, the subtree-merged view.
func (h *ReportHandler) CategoryReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	categoryID, err := parseCategoryID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	viewer := middleware.Viewer(c)
	start := time.Now()

	if query.Extended {
		extended, err := h.reports.ExtendedReport(c.Request.Context(), categoryID, viewer)
		if err != nil {
			h.reportError(c, err)
			return
		}
		middleware.SetCacheHit(c, true)
		h.respond(c, extended, start)
		return
	}

	agg, cacheHit, err := h.reports.CategoryReport(c.Request.Context(), categoryID, viewer)
	if err != nil {
		h.reportError(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	h.respond(c, agg, start)
}

// Export streams a category view, direct or extended, as a CSV or PDF
// download.
func (h *ReportHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	categoryID, err := parseCategoryID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf, view courses or students"))
		return
	}
	if query.View == "" {
		query.View = service.ExportViewCourses
	}

	file, err := h.exports.CategoryReport(c.Request.Context(), categoryID, middleware.Viewer(c), query.View, query.Format, query.Extended)
	if err != nil {
		h.reportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *ReportHandler) respond(c *gin.Context, data interface{}, start time.Time) {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, data, meta)
}

func (h *ReportHandler) reportError(c *gin.Context, err error) {
	if errors.Is(err, appErrors.ErrCacheNotReady) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	response.Error(c, err)
}

func parseCategoryID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid category id")
	}
	return id, nil
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clearview-lms/clearview-api/internal/middleware"
	"github.com/clearview-lms/clearview-api/internal/service"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
	"github.com/clearview-lms/clearview-api/pkg/response"
)

// AdvancedReportHandler exposes the advanced report endpoints.
type AdvancedReportHandler struct {
	advreports *service.AdvancedReportService
}

// NewAdvancedReportHandler constructs the advanced report handler.
func NewAdvancedReportHandler(advreports *service.AdvancedReportService) *AdvancedReportHandler {
	return &AdvancedReportHandler{advreports: advreports}
}

// List returns the report kinds available on this deployment.
func (h *AdvancedReportHandler) List(c *gin.Context) {
	if h.advreports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.advreports.Kinds())
}

// Get returns one advanced report's data.
func (h *AdvancedReportHandler) Get(c *gin.Context) {
	if h.advreports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	kindID := c.Param("id")
	start := time.Now()
	data, cacheHit, err := h.advreports.Get(c.Request.Context(), kindID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheNotReady) {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, data, meta)
}

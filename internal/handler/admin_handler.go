package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/service"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
	"github.com/clearview-lms/clearview-api/pkg/response"
)

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	refresh *service.RefreshService
	logger  *zap.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(refresh *service.RefreshService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{refresh: refresh, logger: logger}
}

// RefreshCache triggers a full cache rebuild. The rebuild runs in the
// background; the request returns as soon as it is accepted. A second
// trigger while one runs is rejected with a conflict.
func (h *AdminHandler) RefreshCache(c *gin.Context) {
	if h.refresh == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if h.refresh.Running() {
		response.Error(c, appErrors.ErrRefreshInProgress)
		return
	}

	go func() {
		if err := h.refresh.RefreshAll(context.Background()); err != nil {
			if errors.Is(err, appErrors.ErrRefreshInProgress) {
				return
			}
			if h.logger != nil {
				h.logger.Error("triggered cache refresh failed", zap.Error(err))
			}
		}
	}()

	response.JSON(c, http.StatusAccepted, gin.H{"status": "refresh started"})
}

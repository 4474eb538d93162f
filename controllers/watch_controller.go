package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stillalive/api/middleware"
	"github.com/stillalive/api/registry"
	"github.com/stillalive/api/utils"
)

// WatchController exposes the watch registry over HTTP.
type WatchController struct {
	reg *registry.Registry
}

// NewWatchController constructs the controller.
func NewWatchController(db *gorm.DB) *WatchController {
	return &WatchController{reg: registry.New(registry.NewGormStore(db))}
}

// Add starts watching the user identified by a share code.
func (w *WatchController) Add(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	var req struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request body")
		return
	}
	if req.Code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40020, "code is required")
		return
	}

	watch, err := w.reg.AddWatch(ctx.Request.Context(), userID, req.Code, utils.SanitizeName(req.Name))
	switch {
	case errors.Is(err, registry.ErrCodeNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "no user with that code")
	case errors.Is(err, registry.ErrSelfWatch):
		utils.Error(ctx, http.StatusConflict, 40921, "cannot watch yourself")
	case errors.Is(err, registry.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40920, "already watching this user")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to add watch")
	default:
		utils.Success(ctx, watch)
	}
}

// List returns everyone the caller watches with their current status.
func (w *WatchController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	views, err := w.reg.ListWatching(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load watches")
		return
	}
	utils.Success(ctx, gin.H{"watching": views, "count": len(views)})
}

// Remove stops watching. Only the owner of a watch may remove it.
func (w *WatchController) Remove(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	watchID, err := strconv.ParseUint(ctx.Param("watchId"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid watch id")
		return
	}

	err = w.reg.RemoveWatch(ctx.Request.Context(), uint(watchID), userID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40421, "watch not found")
	case errors.Is(err, registry.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "not your watch")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to remove watch")
	default:
		utils.Success(ctx, gin.H{"removed": true})
	}
}

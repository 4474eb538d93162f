package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stillalive/api/checkin"
	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/middleware"
	"github.com/stillalive/api/utils"
)

// CheckInController records check-ins and reports check-in status.
type CheckInController struct {
	recorder *checkin.Recorder
	now      func() time.Time
}

// NewCheckInController constructs the controller.
func NewCheckInController(db *gorm.DB) *CheckInController {
	return &CheckInController{
		recorder: checkin.New(checkin.NewGormStore(db)),
		now:      time.Now,
	}
}

// CheckIn records one check-in for the caller. The recorder locks the
// user row so streak math never races a concurrent check-in from a
// second device.
func (c *CheckInController) CheckIn(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	res, err := c.recorder.Record(ctx.Request.Context(), userID)
	switch {
	case errors.Is(err, checkin.ErrNotFound):
		// The account was deleted between device auth and here.
		utils.Error(ctx, http.StatusNotFound, 40430, "account no longer exists")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to record check-in")
	default:
		utils.Success(ctx, gin.H{
			"checked_in_at":   res.CheckedInAt,
			"streak":          res.Streak,
			"total_check_ins": res.TotalCheckIns,
		})
	}
}

// Status reports whether the caller is due for a check-in and how long
// until the next one.
func (c *CheckInController) Status(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	now := c.now()
	interval := liveness.Interval(user.CheckInFrequency)

	resp := gin.H{
		"streak":             user.Streak,
		"total_check_ins":    user.TotalCheckIns,
		"check_in_frequency": user.CheckInFrequency,
		"last_check_in":      user.LastCheckIn,
	}

	if user.LastCheckIn == nil {
		resp["can_check_in"] = true
		resp["time_remaining_seconds"] = int64(0)
		utils.Success(ctx, resp)
		return
	}

	elapsed := now.Sub(*user.LastCheckIn)
	if elapsed >= interval {
		resp["can_check_in"] = true
		resp["time_remaining_seconds"] = int64(0)
	} else {
		resp["can_check_in"] = false
		resp["time_remaining_seconds"] = int64((interval - elapsed).Seconds())
	}
	utils.Success(ctx, resp)
}

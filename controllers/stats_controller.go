package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stillalive/api/models"
	"github.com/stillalive/api/utils"
)

const statsCacheKey = "stats:overview"

// StatsController serves aggregate service counters.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController constructs the controller.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

type statsView struct {
	Users         int64 `json:"users"`
	CheckInsToday int64 `json:"check_ins_today"`
	AlertsTotal   int64 `json:"alerts_total"`
}

// GetStats returns overview counters, cached in Redis for a minute so
// the public endpoint cannot hammer the database.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(statsCacheKey); ok {
		var cached statsView
		if err := json.Unmarshal(b, &cached); err == nil {
			utils.Success(ctx, cached)
			return
		}
	}

	var view statsView
	rctx := ctx.Request.Context()

	if err := s.db.WithContext(rctx).Model(&models.User{}).Count(&view.Users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load stats")
		return
	}

	dayStart := time.Now().Truncate(24 * time.Hour)
	if err := s.db.WithContext(rctx).Model(&models.CheckIn{}).
		Where("checked_in_at >= ?", dayStart).
		Count(&view.CheckInsToday).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load stats")
		return
	}

	if err := s.db.WithContext(rctx).Model(&models.MissedAlert{}).Count(&view.AlertsTotal).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load stats")
		return
	}

	utils.CacheSetJSON(statsCacheKey, view, time.Minute)
	utils.Success(ctx, view)
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stillalive/api/config"
	"github.com/stillalive/api/controllers"
	"github.com/stillalive/api/middleware"
	"github.com/stillalive/api/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file, separate from app logs
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Device-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	userController := controllers.NewUserController(db)
	checkInController := controllers.NewCheckInController(db)
	squadController := controllers.NewSquadController(db)
	watchController := controllers.NewWatchController(db)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	// Public stats endpoint
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(middleware.DeviceAuth(db), middleware.RateLimitMiddleware())

	protected.GET("/me", userController.Me)
	protected.PATCH("/me/name", userController.UpdateName)
	protected.PATCH("/me/frequency", userController.UpdateFrequency)
	protected.POST("/me/code", userController.GenerateCode)
	protected.DELETE("/me", userController.DeleteAccount)

	protected.POST("/checkin", checkInController.CheckIn)
	protected.GET("/checkin/status", checkInController.Status)

	protected.GET("/squad", squadController.List)
	protected.POST("/squad", squadController.AddMember)
	protected.DELETE("/squad/:memberId", squadController.Remove)

	protected.GET("/watching", watchController.List)
	protected.POST("/watching", watchController.Add)
	protected.DELETE("/watching/:watchId", watchController.Remove)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}

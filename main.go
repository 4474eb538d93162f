package main

import (
	"context"
	"time"

	"github.com/stillalive/api/config"
	"github.com/stillalive/api/models"
	"github.com/stillalive/api/routes"
	"github.com/stillalive/api/sweep"
	"github.com/stillalive/api/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.CheckIn{},
		&models.SquadMember{},
		&models.Watch{},
		&models.MissedAlert{},
	)

	r := routes.SetupRouter(db)

	// Background liveness sweep: finds overdue users and alerts their squads
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	sweeper := sweep.New(sweep.NewGormStore(db), utils.NewAlertMailer(), utils.Sugar)
	sweeper.Start(sweepCtx,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.SweepStartupDelaySec)*time.Second,
	)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

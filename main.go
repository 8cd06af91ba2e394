package main

import (
	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/routes"
	"github.com/cppla/aiblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(models.All()...)

	geo := utils.NewGeoLocator(cfg)
	if !geo.Enabled() {
		utils.Sugar.Info("geo lookup disabled, views are stored without location")
	}

	r := routes.SetupRouter(db, geo)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(":"+cfg.AppPort, r, func() {
		if err := geo.Close(); err != nil {
			utils.Sugar.Warnf("close geoip database: %v", err)
		}
	})
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

package main

import (
	"github.com/playhouse/partyserver/config"
	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/persistence"
	"github.com/playhouse/partyserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize persistence gateway
	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	if cfg.Redis.Enabled {
		gateway, err = persistence.NewCachedGateway(gateway, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to redis: %v", err)
		}
		logger.Log.Info("Redis snapshot cache enabled.")
	}

	// Initialize game server
	gameServer := server.NewGameServer(cfg, gateway)

	// Start server
	logger.Log.Infof("Starting party server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func newGateway(cfg *config.Config) (persistence.Gateway, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "pq":
		return persistence.NewPostgres(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewGormPostgres(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
}

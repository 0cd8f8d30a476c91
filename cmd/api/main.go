package main

import (
	"os"

	"github.com/yigit/coursecred/internal/bootstrap"
	"github.com/yigit/coursecred/internal/config"
	"github.com/yigit/coursecred/internal/pkg/logger"
	"github.com/yigit/coursecred/internal/server"
)

// @title CourseCred API
// @version 1.0
// @description Enrollment progress, course ratings and completion certificates
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	srv, err := server.NewServer(config.GetEnv("CONFIG_PATH", bootstrap.DefaultConfigPath))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}

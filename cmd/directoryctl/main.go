// Command directoryctl queries a running directory API and manages seed data.
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"github.com/octobees/provider-directory/internal/logging"
)

func main() {
	logging.Init("directoryctl", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

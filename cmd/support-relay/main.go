package main

import (
	"os"

	"github.com/psds-microservice/support-relay/cmd"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("support-relay")
		os.Exit(1)
	}
}

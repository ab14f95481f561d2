package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"cartograph/internal/commands"
)

func main() {
	if err := commands.New().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("cartograph failed")
		os.Exit(1)
	}
}

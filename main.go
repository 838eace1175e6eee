package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/hirosat/ermine/pkg/cli"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Default().Debug("no .env file found", "error", err)
	}

	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		logging.Default().Error(err.Message)
		os.Exit(err.Code)
	}
}

// Command lambda runs the forwarder behind an API Gateway HTTP API.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/okian/epcforward/internal/adapters/edge"
	"github.com/okian/epcforward/internal/config"
	"github.com/okian/epcforward/internal/server"
	"github.com/okian/epcforward/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	app, err := server.Build(ctx, cfg, server.WithLogger(logger.Get()))
	if err != nil {
		logger.Get().Error(ctx, "failed to start forwarder", logger.Error(err))
		os.Exit(1)
	}

	lambda.Start(edge.New(app.Handler).Handle)
}

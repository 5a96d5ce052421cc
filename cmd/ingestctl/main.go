package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/contexta-ingest/internal/app"
	"github.com/markdave123-py/contexta-ingest/internal/cli"
	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cli.Deps{
		OpenIngester: func(ctx context.Context) (cli.Ingester, func() error, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, err
			}
			l := logger.SetupStderr(cfg.LogLevel, cfg.LogFormat)
			p, err := app.BuildPipeline(ctx, cfg, l, nil)
			if err != nil {
				return nil, nil, err
			}
			return p.Ingestor, p.Close, nil
		},
		OpenPublisher: func() (cli.Publisher, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			l := logger.SetupStderr(cfg.LogLevel, cfg.LogFormat)
			return worker.NewPublisher(cfg.NSQD, cfg.NSQTopic, l)
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/gqlbridge/internal/gqlbridge/app"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

const usage = `usage:
  gqlbridge                serve pages from $GQLBRIDGE_CONFIG_FILE
  gqlbridge hydrate <url>  fetch a page and answer its query from the embedded cache`

func main() {
	cfg := app.LoadConfig()

	if len(os.Args) > 1 {
		switch {
		case os.Args[1] == "hydrate" && len(os.Args) == 3:
			hydrate(cfg, os.Args[2])
			return
		default:
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func hydrate(cfg app.Config, pageURL string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slogx.New(slogx.Config{
		Service: "gqlbridge-hydrate",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
	})

	if err := app.Hydrate(ctx, cfg, pageURL, os.Stdout, logger); err != nil {
		log.Fatalf("hydrate failed: %v", err)
	}
}

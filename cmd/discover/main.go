// Command discover runs facility discovery operations from a terminal. Results
// are printed as JSON on stdout; logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/zatekoja/facility-discovery/internal/bootstrap"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	"github.com/zatekoja/facility-discovery/pkg/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	root := newRootCmd(os.Stdout, openEngine)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine builds the same graph as the API server, minus the invalidation
// listener a one-shot process has no use for.
func openEngine(ctx context.Context) (Discovery, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	observability.InitLoggerTo(os.Stderr, "discover", cfg.Env)

	engine, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, nil, err
	}
	return engine.Discovery, engine.Close, nil
}

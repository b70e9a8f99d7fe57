// Command pgvector-provision prepares a pgvector (or pgvector on Citus)
// database for a benchmark run: it activates the extension, optionally drops
// the previous collection, creates the table and builds the vector index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentplexus/omnibench/config"
	"github.com/agentplexus/omnibench/providers/pgvector"
)

func main() {
	configPath := flag.String("config", "pgvector.yaml", "path to the backend configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "pgvector-provision:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	logger.Info("connecting", "backend", cfg.Backend, "driver", cfg.Driver, "db", cfg.DB)
	session, err := cfg.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close(context.Background()) }()

	observer := cfg.Observe.NewObserver(logger)
	defer observer.Flush(context.Background())
	client, err := cfg.NewClient(session, pgvector.Options{
		Backend:  string(cfg.Backend),
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		return err
	}

	if err := setup(ctx, cfg, client); err != nil {
		return err
	}
	logger.Info("provisioned", "table", cfg.TableName, "dimension", cfg.Dimension)
	return nil
}

// setup runs the provisioning steps in order. The client configuration is
// checked before any statement is issued. The first failure aborts the run;
// a table left behind by a failed later step is not cleaned up.
func setup(ctx context.Context, cfg *config.Config, client config.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := client.ActivateExtension(ctx); err != nil {
		return fmt.Errorf("activate extension: %w", err)
	}
	if cfg.DropOld {
		if err := client.DropIndex(ctx); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
		if err := client.DropTable(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	if err := client.CreateTable(ctx, cfg.Dimension); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if cfg.CreateIndex {
		if err := client.CreateIndex(ctx, cfg.IndexConfig()); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

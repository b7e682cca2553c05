// RoadRisk ingest - loads accident event CSV exports into ClickHouse.
//
// Usage:
//   ingest --file data/accident_events.csv
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"roadrisk/internal/store"
	"roadrisk/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	platform.LoadDotEnv()

	app := &cli.App{
		Name:    "ingest",
		Usage:   "Load accident event CSV exports into the record store",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Required: true,
				Usage:    "Path to the accident events CSV",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Value: 1000,
				Usage: "Rows per insert batch",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Parse and validate without inserting",
			},
		},
		Action: runIngest,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runIngest(c *cli.Context) error {
	log := platform.InitLogger("roadrisk-ingest")
	ctx := context.Background()

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	reader, err := store.NewEventCSVReader(f)
	if err != nil {
		return err
	}

	var ch *store.ClickHouseStore
	if !c.Bool("dry-run") {
		cfg := &store.Config{
			Host:     platform.GetEnv("CLICKHOUSE_HOST", "localhost"),
			Port:     platform.GetEnvInt("CLICKHOUSE_PORT", 9000),
			Database: platform.GetEnv("CLICKHOUSE_DATABASE", "roadrisk"),
			Username: platform.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: platform.GetEnv("CLICKHOUSE_PASSWORD", ""),
		}
		ch, err = store.NewClickHouseStore(cfg)
		if err != nil {
			return err
		}
		defer ch.Close()
		if err := ch.Ping(ctx); err != nil {
			return fmt.Errorf("store not reachable: %w", err)
		}
	}

	start := time.Now()
	batchSize := c.Int("batch-size")
	batch := make([]store.AccidentRecord, 0, batchSize)
	inserted, skipped := 0, 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if ch != nil {
			if err := ch.InsertEvents(ctx, batch); err != nil {
				return fmt.Errorf("insert failed after %d rows: %w", inserted, err)
			}
		}
		inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Bad rows are counted and skipped, not fatal.
			skipped++
			log.Warn().Err(err).Msg("skipping row")
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Info().
		Int("inserted", inserted).
		Int("skipped", skipped).
		Bool("dry_run", c.Bool("dry-run")).
		Dur("elapsed", time.Since(start)).
		Msg("ingestion complete")
	return nil
}

// index is the CLI that drives the indexer (C6) over a directory an
// external extractor has already written, per spec §6's extractor
// contract. It guards against overlapping runs with a PipelineLock and
// a PipelineGuard cooldown, the way the teacher's CLIs wrap long bulk
// operations in progress reporting and a lock file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"codecortex/internal/config"
	"codecortex/internal/di"
	"codecortex/internal/extraction"
)

const guardCooldownOp = "index_run"

func main() {
	var (
		extractedDir = flag.String("dir", "", "Extractor output directory (defaults to CODEBASE_INDEX_DIR)")
		incremental  = flag.Bool("incremental", false, "Only reindex units whose source_hash changed")
	)
	flag.Parse()

	errColor := color.New(color.FgRed, color.Bold)
	okColor := color.New(color.FgGreen)
	infoColor := color.New(color.FgCyan)

	cfg, err := config.LoadConfig()
	if err != nil {
		errColor.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *extractedDir == "" {
		*extractedDir = cfg.Index.Dir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := di.New(ctx, cfg)
	if err != nil {
		errColor.Fprintf(os.Stderr, "failed to build container: %v\n", err)
		os.Exit(1)
	}

	allowed, err := container.Guard.Allow(ctx, guardCooldownOp)
	if err != nil {
		errColor.Fprintf(os.Stderr, "failed to check run cooldown: %v\n", err)
		os.Exit(1)
	}
	if !allowed {
		errColor.Fprintln(os.Stderr, "index run skipped: still within cooldown of the previous run")
		os.Exit(1)
	}

	runErr := container.Lock.WithLock(func() error {
		return runIndex(ctx, container, *extractedDir, *incremental, infoColor, okColor)
	})
	if runErr != nil {
		errColor.Fprintf(os.Stderr, "index run failed: %v\n", runErr)
		os.Exit(1)
	}

	if err := container.Guard.RecordRun(ctx, guardCooldownOp); err != nil {
		log.Printf("warning: failed to record run for cooldown tracking: %v", err)
	}
}

func runIndex(ctx context.Context, container *di.Container, dir string, incremental bool, infoColor, okColor *color.Color) error {
	infoColor.Printf("loading extracted units from %s\n", dir)
	units, loadErrs := extraction.LoadUnits(dir)
	for _, e := range loadErrs {
		log.Printf("warning: %v", e)
	}
	infoColor.Printf("loaded %d units (%d load errors)\n", len(units), len(loadErrs))

	var (
		processed, skipped, indexed, chunksSkipped, batchesFailed int
		err                                                       error
	)
	if incremental {
		r, runErr := container.Indexer.IndexIncremental(ctx, units)
		err = runErr
		if r != nil {
			processed, skipped, indexed, chunksSkipped, batchesFailed = r.UnitsProcessed, r.UnitsSkipped, r.ChunksIndexed, r.ChunksSkipped, r.BatchesFailed
		}
	} else {
		r, runErr := container.Indexer.IndexAll(ctx, units)
		err = runErr
		if r != nil {
			processed, skipped, indexed, chunksSkipped, batchesFailed = r.UnitsProcessed, r.UnitsSkipped, r.ChunksIndexed, r.ChunksSkipped, r.BatchesFailed
		}
	}
	infoColor.Printf("units processed=%d skipped=%d, chunks indexed=%d skipped=%d, batches failed=%d\n",
		processed, skipped, indexed, chunksSkipped, batchesFailed)
	if err != nil {
		return err
	}
	okColor.Println("index run complete")
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/history"
	"mediaspool/internal/logging"
	"mediaspool/internal/queue"
	"mediaspool/internal/storage"
	"mediaspool/internal/tier"
	"mediaspool/internal/uploader"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background queue and retention loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, ctx)
		},
	}
}

func runProcess(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lockPath := filepath.Join(cfg.Paths.LogDir, "mediaspoold.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaspool instance is already running")
	}
	defer lock.Unlock()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := storage.Open(cfg)
	if err != nil {
		logger.Error("open container", "error", err)
		return err
	}
	defer db.Close()

	store := queue.NewStore(db)
	archive := history.NewStore(db)
	blobs := blobstore.New(db)

	// The catalog controller runs its repair pass here so a crashed failover
	// is reconciled before any client reads the catalog.
	if _, err := tier.NewController(cfg, blobs, logger); err != nil {
		logger.Error("init catalog tiers", "error", err)
		return err
	}

	manager := uploader.NewManager(cfg, store, archive, blobs, nil, logger)
	manager.Start()
	defer manager.Stop()

	logger.Info("mediaspool running",
		"database", cfg.DatabasePath(),
		"lock", lockPath)

	<-signalCtx.Done()
	logger.Info("mediaspool shutting down")
	return nil
}

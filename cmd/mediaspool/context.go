package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/config"
	"mediaspool/internal/history"
	"mediaspool/internal/queue"
	"mediaspool/internal/storage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// engine bundles the stores backed by one open container for CLI commands.
type engine struct {
	cfg     *config.Config
	db      *storage.DB
	queue   *queue.Store
	history *history.Store
	blobs   *blobstore.Store
}

func (c *commandContext) withEngine(fn func(*engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(&engine{
		cfg:     cfg,
		db:      db,
		queue:   queue.NewStore(db),
		history: history.NewStore(db),
		blobs:   blobstore.New(db),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

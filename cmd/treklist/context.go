package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"treklist/internal/config"
	"treklist/internal/library"
	"treklist/internal/logging"
	"treklist/internal/metacache"
	"treklist/internal/tags"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	libraryOnce sync.Once
	library     *library.Library
	cache       *metacache.Cache
	pipeline    *tags.Pipeline
	logger      *slog.Logger
	libraryErr  error
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

func (c *commandContext) ensureLibrary() (*library.Library, error) {
	c.libraryOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.libraryErr = err
			return
		}

		c.logger, err = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.libraryErr = err
			return
		}

		lib, err := library.Open(cfg, c.logger)
		if err != nil {
			c.libraryErr = err
			return
		}

		store, err := metacache.OpenStore(cfg.MetadataCachePath())
		if err != nil {
			c.libraryErr = err
			return
		}

		reader := tags.NewReader(c.logger)
		writer := tags.NewWriter(c.logger)
		pipeline := tags.NewPipeline(lib, reader, writer, nil, c.logger)
		cache := metacache.NewCache(store, pipeline, c.logger)
		pipeline.AttachCache(cache)
		lib.SetMetadataCache(cache)

		c.library = lib
		c.cache = cache
		c.pipeline = pipeline
	})
	return c.library, c.libraryErr
}

func (c *commandContext) ensurePipeline() (*tags.Pipeline, error) {
	if _, err := c.ensureLibrary(); err != nil {
		return nil, err
	}
	return c.pipeline, nil
}

func (c *commandContext) ensureCache() (*metacache.Cache, error) {
	if _, err := c.ensureLibrary(); err != nil {
		return nil, err
	}
	return c.cache, nil
}

// withLock guards mutating commands with the data-directory lock so two
// processes never interleave store writes.
func (c *commandContext) withLock(fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire library lock: %w", err)
	}
	if !ok {
		return errors.New("another treklist instance holds the library lock")
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

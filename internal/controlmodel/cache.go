package controlmodel

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"framectl/internal/control"
	"framectl/internal/host"
	"framectl/internal/logging"
	"framectl/internal/services"
)

// Cache wraps a host model loader with a bounded LRU keyed by model id.
type Cache struct {
	loader     host.ModelLoader
	models     *lru.Cache[string, control.Model]
	checkpoint string
	logger     *slog.Logger
}

// NewCache builds a cache holding at most size models.
func NewCache(loader host.ModelLoader, size int, logger *slog.Logger) (*Cache, error) {
	if loader == nil {
		return nil, fmt.Errorf("model loader is required")
	}
	if size <= 0 {
		size = 1
	}
	models, err := lru.New[string, control.Model](size)
	if err != nil {
		return nil, fmt.Errorf("create model cache: %w", err)
	}
	return &Cache{
		loader: loader,
		models: models,
		logger: logging.NewComponentLogger(logger, "controlmodel"),
	}, nil
}

// Sync purges the cache when the host checkpoint changed since the last call.
// It reports whether a purge happened.
func (c *Cache) Sync(checkpoint string) bool {
	if checkpoint == c.checkpoint {
		return false
	}
	previous := c.checkpoint
	c.checkpoint = checkpoint
	if c.models.Len() == 0 {
		return false
	}
	c.models.Purge()
	c.logger.Info("control model cache cleared",
		logging.String("previous_checkpoint", previous),
		logging.String("checkpoint", checkpoint),
	)
	return true
}

// Load returns the cached model for id or asks the host to load it.
func (c *Cache) Load(ctx context.Context, call *host.Call, id string) (control.Model, error) {
	if model, ok := c.models.Get(id); ok {
		return model, nil
	}
	model, err := c.loader.LoadControlModel(ctx, call, id)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "controlmodel", "load", id, err)
	}
	if model == nil {
		return nil, services.Wrap(services.ErrNotFound, "controlmodel", "load", id, nil)
	}
	c.models.Add(id, model)
	c.logger.Debug("control model loaded", logging.String("model", id), logging.String("architecture", model.Architecture()))
	return model, nil
}

// Len returns the number of cached models.
func (c *Cache) Len() int { return c.models.Len() }

package recipe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"recipelab/internal/config"
)

// ErrUnsupportedDriver is returned by Open for an unknown storage driver.
var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// Store defines the interface for recipe data operations.
type Store interface {
	// ListRecipes returns recipes whose title contains query, ignoring case,
	// ordered by ID. An empty query returns every recipe.
	ListRecipes(ctx context.Context, query string) ([]*Recipe, error)
	// GetRecipe returns nil, nil when no recipe has the given ID.
	GetRecipe(ctx context.Context, id int64) (*Recipe, error)
	// CreateRecipe assigns the next free ID and stores r.
	CreateRecipe(ctx context.Context, r *Recipe) (*Recipe, error)
	// UpdateRecipe returns nil, nil when no recipe has the given ID.
	UpdateRecipe(ctx context.Context, id int64, p Patch) (*Recipe, error)
	// DeleteRecipe reports whether a recipe was removed.
	DeleteRecipe(ctx context.Context, id int64) (bool, error)

	// GetScan returns the cached draft for a media hash, or nil, nil.
	GetScan(ctx context.Context, mediaHash string) (*Draft, error)
	SaveScan(ctx context.Context, mediaHash string, d *Draft) error

	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverFile:
		return NewFileStore(cfg.DataDir, log)
	case config.DriverPostgres, config.DriverSQLite:
		return NewSQLStore(ctx, cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

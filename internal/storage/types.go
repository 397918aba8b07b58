package storage

import (
	"context"
	"errors"
	"time"

	"pixelbot/internal/model"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": dependency-free in-process backend (tests, dry runs)
type Config struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"` // sqlite only; 0 means default
}

// Store is the persistence API consumed by the core components. Absent
// lookups return ok=false with a nil error; a non-nil error always means the
// call did not complete.
type Store interface {
	FindUser(ctx context.Context, uid int64) (*model.User, bool, error)
	UpsertUser(ctx context.Context, u *model.User) error
	ListUsers(ctx context.Context) ([]*model.User, error)

	InsertPixel(ctx context.Context, p *model.Pixel) error
	FindPixel(ctx context.Context, id int64) (*model.Pixel, bool, error)
	MaxPixelID(ctx context.Context) (int64, error)

	UpsertCell(ctx context.Context, c model.Cell) error
	ListCells(ctx context.Context) ([]model.Cell, error)

	ListColors(ctx context.Context) ([]model.Color, error)
	SeedColors(ctx context.Context, colors []model.Color) error

	// Ping probes liveness and re-establishes the connection when the
	// probe fails. Callers treat an error as "store still down".
	Ping(ctx context.Context) error
	Close() error
}

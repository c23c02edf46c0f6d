package app

import (
	"context"
	"errors"
	"time"

	"ayursutra/pkg/storage"
	"ayursutra/pkg/store"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Store store.Store
	// Objects receives patient exports; nil disables exporting.
	Objects storage.ObjectStore
	// Location defines "today" for dashboard counts. Defaults to time.Local.
	Location *time.Location
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// App implements the patient, dashboard and chat log services on top of a store.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	loc           *time.Location
	now           func() time.Time
	presignExpiry time.Duration
}

// New constructs the application around an injected store.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:         cfg.Store,
		objects:       cfg.Objects,
		loc:           loc,
		now:           now,
		presignExpiry: 15 * time.Minute,
	}, nil
}

// Location returns the clinic time zone used for calendar-day boundaries.
func (a *App) Location() *time.Location {
	return a.loc
}

// Ping reports whether the backing store is reachable.
func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

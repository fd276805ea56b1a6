package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/store"
	"github.com/atlasfleet/dispatch-cli/pkg/geocode"
)

// openStore builds the configured order store.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newGeocodeClient builds the geocoding client from config.
func newGeocodeClient() geocode.Client {
	return geocode.NewClient(cfg.Geocode.Key,
		geocode.WithRateLimit(cfg.Geocode.RatePerSecond),
		geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs)*time.Second),
	)
}

func cursorPath() string {
	return filepath.Join(cfg.Sync.DataDir, "cursor.json")
}

func seenPath() string {
	return filepath.Join(cfg.Sync.DataDir, "processed.ids")
}

package main

import (
	"context"
	"fmt"

	"github.com/ainoobmenpg/cc-gateway/internal/config"
	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
)

// openStore loads the daemon's config from configPath and opens the same
// sqlite-backed session store the daemon uses, so ccgatewayctl reads and
// writes the exact state a running (or stopped) ccgatewayd sees.
func openStore(configPath string) (sessions.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Database.URL
	if dbPath == "" {
		dbPath = "gateway.db"
	}
	store, err := sessions.NewSQLiteStore(context.Background(), sessions.SQLiteConfig{Path: dbPath})
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return store, func() { store.Close() }, nil
}

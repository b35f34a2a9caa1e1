//go:build sqlite

package main

import (
	"oidcsync/internal/clientstore"
	sqlitestore "oidcsync/internal/clientstore/sqlite"
	"oidcsync/internal/config"
	"oidcsync/internal/observability"
)

// selectStore returns a SQLite-backed store when built with the 'sqlite'
// tag. The DSN comes from store.dsn (e.g. file:oidc.db?_fk=1).
func selectStore(cfg *config.Config, log observability.Logger) (clientstore.Store, error) {
	if cfg.Store.Driver == "memory" || cfg.Store.DSN == "" {
		log.Info("no sqlite DSN configured, using in-memory store")
		return clientstore.NewMemoryStore(), nil
	}
	st, err := sqlitestore.New(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	log.Info("using sqlite store", "dsn", cfg.Store.DSN)
	return st, nil
}

//go:build postgres

package main

import (
	"oidcsync/internal/clientstore"
	pgstore "oidcsync/internal/clientstore/postgres"
	"oidcsync/internal/config"
	"oidcsync/internal/observability"
)

// selectStore returns a PostgreSQL-backed store when built with the
// 'postgres' tag. The DSN comes from store.dsn.
func selectStore(cfg *config.Config, log observability.Logger) (clientstore.Store, error) {
	if cfg.Store.Driver == "memory" || cfg.Store.DSN == "" {
		log.Info("no postgres DSN configured, using in-memory store")
		return clientstore.NewMemoryStore(), nil
	}
	st, err := pgstore.New(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	log.Info("using postgres store")
	return st, nil
}

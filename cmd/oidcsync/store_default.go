//go:build !sqlite && !postgres

package main

import (
	"oidcsync/internal/clientstore"
	"oidcsync/internal/config"
	"oidcsync/internal/observability"
)

// selectStore returns the in-memory store when built without a database
// tag. A configured driver other than memory gets a hint to rebuild.
func selectStore(cfg *config.Config, log observability.Logger) (clientstore.Store, error) {
	if cfg.Store.Driver != "" && cfg.Store.Driver != "memory" {
		log.Warn("store driver configured but binary built without database support, using in-memory store",
			"driver", cfg.Store.Driver)
	}
	return clientstore.NewMemoryStore(), nil
}

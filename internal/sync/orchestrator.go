package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"oidcsync/internal/clientstore"
	"oidcsync/internal/config"
	"oidcsync/internal/observability"
	"oidcsync/internal/registry"
	"oidcsync/internal/secrets"
)

// Direction selects which system of record wins for one run.
type Direction string

const (
	DirectionToStore    Direction = "to-store"
	DirectionToRegistry Direction = "to-registry"
)

// Orchestrator wires the gateways, mapper and reconcilers, and runs one
// pass in one direction.
type Orchestrator struct {
	cfg         *config.Config
	gateway     registry.Gateway
	store       clientstore.Store
	confirm     Confirmer
	interactive bool
	log         observability.Logger
}

// NewOrchestrator builds an orchestrator over already-opened collaborators.
func NewOrchestrator(cfg *config.Config, gateway registry.Gateway, store clientstore.Store,
	confirm Confirmer, interactive bool, log observability.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		gateway:     gateway,
		store:       store,
		confirm:     confirm,
		interactive: interactive,
		log:         log,
	}
}

// Run executes one pass. The returned result is always complete; an error
// is only returned for gross misconfiguration, never for entity failures.
func (o *Orchestrator) Run(ctx context.Context, direction Direction) (*SyncResult, error) {
	cipher, err := secrets.NewCipher(o.cfg.Conf.EncryptionSecret)
	if err != nil {
		return nil, err
	}
	mapper := NewMapper(o.cfg, cipher)

	runID := uuid.NewString()
	log := o.log.With("run_id", runID, "direction", string(direction))
	log.Info("sync pass starting", "interactive", o.interactive)
	started := time.Now()

	var res *SyncResult
	switch direction {
	case DirectionToStore:
		res = NewToStoreSyncer(o.gateway, o.store, mapper, o.cfg, o.confirm, o.interactive, log).Sync(ctx)
	case DirectionToRegistry:
		res = NewToRegistrySyncer(o.gateway, o.store, mapper, o.cfg, o.confirm, o.interactive, log).Sync(ctx)
	default:
		return nil, fmt.Errorf("unknown sync direction %q", direction)
	}

	log.Info("sync pass finished", "result", res.String(),
		"duration", time.Since(started).Round(time.Millisecond).String())

	if direction == DirectionToStore && o.cfg.Conf.StatusFile != "" {
		if err := WriteStatusFile(o.cfg.Conf.StatusFile, res.Ok(), time.Now()); err != nil {
			log.Error("writing status file failed", "path", o.cfg.Conf.StatusFile, "error", err)
		}
	}
	return res, nil
}

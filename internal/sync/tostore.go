package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oidcsync/internal/clientstore"
	"oidcsync/internal/config"
	"oidcsync/internal/domain"
	"oidcsync/internal/observability"
	"oidcsync/internal/registry"
)

// ToStoreSyncer reconciles the registry into the client store: facilities
// tagged with this deployment's proxy identifier become client records.
type ToStoreSyncer struct {
	gateway     registry.Gateway
	store       clientstore.Store
	mapper      *Mapper
	cfg         *config.Config
	confirm     Confirmer
	interactive bool
	log         observability.Logger
}

// NewToStoreSyncer wires a to-store pass.
func NewToStoreSyncer(gateway registry.Gateway, store clientstore.Store, mapper *Mapper,
	cfg *config.Config, confirm Confirmer, interactive bool, log observability.Logger) *ToStoreSyncer {
	return &ToStoreSyncer{
		gateway:     gateway,
		store:       store,
		mapper:      mapper,
		cfg:         cfg,
		confirm:     confirm,
		interactive: interactive,
		log:         log.WithComponent("to-store"),
	}
}

// Sync runs one full pass and always returns a result, never an error. A
// failed initial fetch yields a zero-effect result; a connectivity error
// seen mid-pass disables the deletion phase so stale clients are never
// removed on a possibly incomplete view.
func (s *ToStoreSyncer) Sync(ctx context.Context) *SyncResult {
	res := &SyncResult{}
	protected := s.cfg.ProtectedIDs()

	facilities, err := s.gateway.FacilitiesByAttribute(ctx,
		s.cfg.Attributes.ProxyIdentifier, s.cfg.Conf.ProxyIdentifierValue)
	if err != nil {
		s.log.Error("fetching facilities failed, aborting pass", "error", err)
		return res
	}
	s.log.Info("facilities fetched", "count", len(facilities))

	found := make(map[string]struct{})
	proceedToDelete := true

	for _, facility := range facilities {
		if err := s.syncFacility(ctx, facility, found, protected, res); err != nil {
			res.Errors++
			s.log.Error("processing facility failed", "facility", facility.String(), "error", err)
			if errors.Is(err, registry.ErrConnection) {
				proceedToDelete = false
			}
		}
	}

	s.deleteStale(ctx, found, protected, proceedToDelete, res)
	return res
}

func (s *ToStoreSyncer) syncFacility(ctx context.Context, facility domain.Facility,
	found, protected map[string]struct{}, res *SyncResult) error {

	attrs, err := s.gateway.FacilityAttributes(ctx, facility.ID, s.cfg.Attributes.Names())
	if err != nil {
		return err
	}

	clientID, err := s.mapper.ClientID(attrs)
	if err != nil {
		return err
	}
	if clientID == "" {
		s.log.Debug("facility is not OIDC-managed, skipping", "facility", facility.String())
		return nil
	}
	if _, ok := protected[clientID]; ok {
		s.log.Info("client is protected, skipping", "client_id", clientID)
		return nil
	}
	found[clientID] = struct{}{}

	existing, err := s.store.ByClientID(ctx, clientID)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.createClient(ctx, attrs, clientID, res)
	}
	return s.updateClient(ctx, attrs, existing, res)
}

func (s *ToStoreSyncer) createClient(ctx context.Context, attrs map[string]domain.Attribute,
	clientID string, res *SyncResult) error {

	if !s.cfg.Actions.ToStore.Create {
		s.log.Info("creation disabled, client not stored", "client_id", clientID)
		return nil
	}
	rec, err := s.mapper.ToClientRecord(attrs)
	if err != nil {
		return err
	}
	rec.CreatedAt = time.Now().UTC()

	if s.interactive {
		prompt := fmt.Sprintf("About to create client:\n%sProceed?", rec.String())
		if !s.confirm.Confirm(prompt) {
			s.log.Info("creation rejected by operator", "client_id", clientID)
			return nil
		}
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	res.Created++
	s.log.Info("client created", "client_id", clientID)
	return nil
}

func (s *ToStoreSyncer) updateClient(ctx context.Context, attrs map[string]domain.Attribute,
	existing *domain.ClientRecord, res *SyncResult) error {

	if !s.cfg.Actions.ToStore.Update {
		s.log.Info("updates disabled, client left as is", "client_id", existing.ClientID)
		return nil
	}
	updated, err := s.mapper.ToClientRecord(attrs)
	if err != nil {
		return err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	report := DiffClients(existing, updated)
	if report.Empty() {
		s.log.Debug("client unchanged", "client_id", existing.ClientID)
		return nil
	}
	if s.interactive {
		prompt := fmt.Sprintf("About to update client %s:\n%sProceed?", existing.ClientID, report.String())
		if !s.confirm.Confirm(prompt) {
			s.log.Info("update rejected by operator", "client_id", existing.ClientID)
			return nil
		}
	}
	if err := s.store.Update(ctx, updated); err != nil {
		return err
	}
	res.Updated++
	s.log.Info("client updated", "client_id", existing.ClientID)
	return nil
}

// deleteStale removes clients that exist in the store but were not seen in
// the registry, excluding protected IDs.
func (s *ToStoreSyncer) deleteStale(ctx context.Context, found, protected map[string]struct{},
	proceedToDelete bool, res *SyncResult) {

	allIDs, err := s.store.AllClientIDs(ctx)
	if err != nil {
		res.Errors++
		s.log.Error("listing stored client IDs failed", "error", err)
		return
	}

	var stale []string
	for id := range allIDs {
		if _, ok := found[id]; ok {
			continue
		}
		if _, ok := protected[id]; ok {
			continue
		}
		stale = append(stale, id)
	}
	stale = domain.SortedSet(stale)
	if len(stale) == 0 {
		return
	}

	if !s.cfg.Actions.ToStore.Delete {
		s.log.Info("deletion disabled, stale clients kept", "client_ids", stale)
		return
	}
	if !proceedToDelete {
		s.log.Warn("connectivity errors seen during pass, skipping deletion of stale clients",
			"client_ids", stale)
		return
	}

	if s.interactive {
		for _, id := range stale {
			rec, err := s.store.ByClientID(ctx, id)
			if err != nil {
				res.Errors++
				s.log.Error("loading stale client failed", "client_id", id, "error", err)
				continue
			}
			if rec == nil {
				continue
			}
			prompt := fmt.Sprintf("About to delete client:\n%sProceed?", rec.String())
			if !s.confirm.Confirm(prompt) {
				s.log.Info("deletion rejected by operator", "client_id", id)
				continue
			}
			if err := s.store.Delete(ctx, id); err != nil {
				res.Errors++
				s.log.Error("deleting client failed", "client_id", id, "error", err)
				continue
			}
			res.Deleted++
		}
		return
	}

	n, err := s.store.DeleteByClientIDs(ctx, stale)
	if err != nil {
		res.Errors++
		s.log.Error("bulk deleting stale clients failed", "error", err)
		return
	}
	res.Deleted += int(n)
	s.log.Info("stale clients deleted", "count", n)
}

package sync

import (
	"context"
	"errors"
	"fmt"

	"oidcsync/internal/clientstore"
	"oidcsync/internal/config"
	"oidcsync/internal/domain"
	"oidcsync/internal/observability"
	"oidcsync/internal/registry"
)

// ToRegistrySyncer reconciles the client store into the registry: every
// stored client gets a facility with a matching attribute bundle and a
// managers group, and facilities without a client are torn down.
type ToRegistrySyncer struct {
	gateway     registry.Gateway
	store       clientstore.Store
	mapper      *Mapper
	cfg         *config.Config
	confirm     Confirmer
	interactive bool
	log         observability.Logger

	// proceedToDelete is cleared when a connectivity error is seen during
	// the pass: a possibly incomplete view must never drive deletions.
	proceedToDelete bool
}

// NewToRegistrySyncer wires a to-registry pass.
func NewToRegistrySyncer(gateway registry.Gateway, store clientstore.Store, mapper *Mapper,
	cfg *config.Config, confirm Confirmer, interactive bool, log observability.Logger) *ToRegistrySyncer {
	return &ToRegistrySyncer{
		gateway:     gateway,
		store:       store,
		mapper:      mapper,
		cfg:         cfg,
		confirm:     confirm,
		interactive: interactive,
		log:         log.WithComponent("to-registry"),
	}
}

// Sync runs one full pass and always returns a result, never an error.
func (s *ToRegistrySyncer) Sync(ctx context.Context) *SyncResult {
	res := &SyncResult{}
	s.proceedToDelete = true

	present, err := s.presentFacilities(ctx)
	if err != nil {
		s.log.Error("fetching facilities failed, aborting pass", "error", err)
		return res
	}

	clients, err := s.store.All(ctx)
	if err != nil {
		s.log.Error("listing stored clients failed, aborting pass", "error", err)
		return res
	}
	s.log.Info("reconciling clients into registry",
		"clients", len(clients), "facilities", len(present))

	protected := s.cfg.ProtectedIDs()
	for _, client := range clients {
		if client.ClientID == "" {
			res.Errors++
			s.log.Error("stored client has no client ID", "row", client.ID)
			continue
		}
		if _, ok := protected[client.ClientID]; ok {
			s.log.Info("client is protected, skipping", "client_id", client.ClientID)
			delete(present, client.ClientID)
			continue
		}
		if err := s.syncClient(ctx, client, present, res); err != nil {
			res.Errors++
			s.log.Error("processing client failed", "client_id", client.ClientID, "error", err)
			if errors.Is(err, registry.ErrConnection) {
				s.proceedToDelete = false
			}
		}
		// Handled either way; a failed client must not look stale later.
		delete(present, client.ClientID)
	}

	s.deleteLeftovers(ctx, present, res)
	return res
}

// presentFacilities builds the client-ID to facility map from one bulk
// fetch. Facilities whose client-ID attribute is blank or unreadable are
// not OIDC-managed here and are left alone.
func (s *ToRegistrySyncer) presentFacilities(ctx context.Context) (map[string]domain.Facility, error) {
	facilities, err := s.gateway.FacilitiesByAttribute(ctx,
		s.cfg.Attributes.ProxyIdentifier, s.cfg.Conf.ProxyIdentifierValue)
	if err != nil {
		return nil, err
	}
	present := make(map[string]domain.Facility, len(facilities))
	for _, facility := range facilities {
		attrs, err := s.gateway.FacilityAttributes(ctx, facility.ID,
			[]string{s.cfg.Attributes.ClientID})
		if err != nil {
			s.log.Warn("reading client ID of facility failed, skipping",
				"facility", facility.String(), "error", err)
			continue
		}
		clientID, err := s.mapper.ClientID(attrs)
		if err != nil || clientID == "" {
			continue
		}
		present[clientID] = facility
	}
	return present, nil
}

func (s *ToRegistrySyncer) syncClient(ctx context.Context, client *domain.ClientRecord,
	present map[string]domain.Facility, res *SyncResult) error {

	if facility, ok := present[client.ClientID]; ok {
		return s.updateFacility(ctx, facility, client, res)
	}

	// The bulk fetch can miss a facility registered moments ago; re-search
	// by the client-ID attribute before deciding to create.
	matches, err := s.gateway.FacilitiesByAttribute(ctx, s.cfg.Attributes.ClientID, client.ClientID)
	if err != nil {
		return err
	}
	switch {
	case len(matches) > 1:
		s.log.Warn("more than one facility matches client ID, not touching any",
			"client_id", client.ClientID, "matches", len(matches))
		return nil
	case len(matches) == 1:
		return s.updateFacility(ctx, matches[0], client, res)
	default:
		return s.createFacility(ctx, client, res)
	}
}

func (s *ToRegistrySyncer) updateFacility(ctx context.Context, facility domain.Facility,
	client *domain.ClientRecord, res *SyncResult) error {

	if !s.cfg.Actions.ToRegistry.Update {
		s.log.Info("updates disabled, facility left as is", "client_id", client.ClientID)
		return nil
	}

	fetched, err := s.gateway.FacilityAttributes(ctx, facility.ID, s.cfg.Attributes.Names())
	if err != nil {
		return err
	}
	attrs, err := s.mapper.ToAttributes(client, fetched, false)
	if err != nil {
		return err
	}

	report, err := DiffAttributes(fetched, attrs)
	if err != nil {
		return err
	}
	if report.Empty() {
		s.log.Debug("facility attributes unchanged", "client_id", client.ClientID)
		return s.ensureManagersGroup(ctx, facility, client, fetched)
	}
	if s.interactive {
		prompt := fmt.Sprintf("About to update facility %s for client %s:\n%sProceed?",
			facility.String(), client.ClientID, report.String())
		if !s.confirm.Confirm(prompt) {
			s.log.Info("update rejected by operator", "client_id", client.ClientID)
			return nil
		}
	}

	if err := s.gateway.SetFacilityAttributes(ctx, facility.ID, attrs); err != nil {
		return err
	}
	if err := s.ensureManagersGroup(ctx, facility, client, fetched); err != nil {
		return err
	}
	res.Updated++
	s.log.Info("facility updated", "client_id", client.ClientID, "facility", facility.String())
	return nil
}

func (s *ToRegistrySyncer) createFacility(ctx context.Context, client *domain.ClientRecord,
	res *SyncResult) error {

	if !s.cfg.Actions.ToRegistry.Create {
		s.log.Info("creation disabled, facility not created", "client_id", client.ClientID)
		return nil
	}

	name := NormalizeName(client.ClientName)
	facility, err := s.gateway.CreateFacility(ctx, name, client.ClientDescription)
	if err != nil {
		return err
	}

	if s.interactive {
		prompt := fmt.Sprintf("Created facility %s, about to register client:\n%sProceed?",
			facility.String(), client.String())
		if !s.confirm.Confirm(prompt) {
			s.log.Info("creation rejected by operator, removing facility",
				"client_id", client.ClientID, "facility", facility.String())
			if err := s.gateway.DeleteFacility(ctx, facility.ID); err != nil {
				return err
			}
			return nil
		}
	}

	fetched, err := s.gateway.FacilityAttributes(ctx, facility.ID, s.cfg.Attributes.Names())
	if err != nil {
		return err
	}
	attrs, err := s.mapper.ToAttributes(client, fetched, true)
	if err != nil {
		return err
	}
	if err := s.gateway.SetFacilityAttributes(ctx, facility.ID, attrs); err != nil {
		return err
	}
	if err := s.ensureManagersGroup(ctx, facility, client, fetched); err != nil {
		return err
	}
	res.Created++
	s.log.Info("facility created", "client_id", client.ClientID, "facility", facility.String())
	return nil
}

// ensureManagersGroup makes sure the facility has its managers group: reuse
// the one recorded on the facility, find one by either naming convention,
// or create it. The admin grant tolerates already-granted as success.
func (s *ToRegistrySyncer) ensureManagersGroup(ctx context.Context, facility domain.Facility,
	client *domain.ClientRecord, fetched map[string]domain.Attribute) error {

	groupAttrName := s.cfg.Attributes.ManagersGroupID
	groupAttr, ok := fetched[groupAttrName]
	if !ok {
		return &MissingAttributeError{Attribute: groupAttrName}
	}
	current, err := groupAttr.AttributeValue()
	if err != nil {
		return err
	}
	if !current.IsNull() && current.AsInt() > 0 {
		return nil
	}

	parent := s.cfg.Conf.ManagersGroupParentName
	voID := s.cfg.Conf.ManagersGroupVoID
	shortName := NormalizeName(client.ClientName)

	var group *domain.Group
	for _, candidate := range []string{
		parent + ":" + facility.Name,
		parent + ":" + shortName,
	} {
		group, err = s.gateway.GroupByName(ctx, voID, candidate)
		if err != nil {
			return err
		}
		if group != nil {
			break
		}
	}

	if group == nil {
		created, err := s.gateway.CreateGroup(ctx, domain.NewGroup(
			parent+":"+shortName,
			shortName,
			fmt.Sprintf("Managers of %s", client.ClientName),
			s.cfg.Conf.ManagersGroupParentID,
			voID,
		))
		if err != nil {
			return err
		}
		group = &created
		s.log.Info("managers group created", "client_id", client.ClientID, "group", group.String())
	}

	if err := s.gateway.AddGroupAsAdmin(ctx, facility.ID, group.ID); err != nil {
		s.log.Warn("granting managers group admin rights failed",
			"client_id", client.ClientID, "group", group.String(), "error", err)
	}

	if err := groupAttr.SetValue(group.ID); err != nil {
		return err
	}
	return s.gateway.SetFacilityAttributes(ctx, facility.ID, []domain.Attribute{groupAttr})
}

// deleteLeftovers tears down facilities that no stored client refers to:
// managers group first, then the facility. A failed group deletion is
// logged but does not keep the facility alive.
func (s *ToRegistrySyncer) deleteLeftovers(ctx context.Context, present map[string]domain.Facility,
	res *SyncResult) {

	if len(present) == 0 {
		return
	}
	if !s.cfg.Actions.ToRegistry.Delete {
		s.log.Info("deletion disabled, leftover facilities kept", "count", len(present))
		return
	}
	if !s.proceedToDelete {
		s.log.Warn("connectivity errors seen during pass, skipping deletion of leftover facilities",
			"count", len(present))
		return
	}

	for clientID, facility := range present {
		if s.interactive {
			prompt := fmt.Sprintf("About to delete facility %s (client %s). Proceed?",
				facility.String(), clientID)
			if !s.confirm.Confirm(prompt) {
				s.log.Info("deletion rejected by operator", "facility", facility.String())
				continue
			}
		}
		if err := s.deleteFacility(ctx, facility); err != nil {
			res.Errors++
			s.log.Error("deleting facility failed", "facility", facility.String(), "error", err)
			continue
		}
		res.Deleted++
		s.log.Info("facility deleted", "client_id", clientID, "facility", facility.String())
	}
}

func (s *ToRegistrySyncer) deleteFacility(ctx context.Context, facility domain.Facility) error {
	attrs, err := s.gateway.FacilityAttributes(ctx, facility.ID,
		[]string{s.cfg.Attributes.ManagersGroupID})
	if err != nil {
		return err
	}
	if attr, ok := attrs[s.cfg.Attributes.ManagersGroupID]; ok {
		val, err := attr.AttributeValue()
		if err == nil && !val.IsNull() && val.AsInt() > 0 {
			if err := s.gateway.DeleteGroup(ctx, val.AsInt()); err != nil {
				s.log.Warn("deleting managers group failed, deleting facility anyway",
					"facility", facility.String(), "error", err)
			}
		}
	}
	return s.gateway.DeleteFacility(ctx, facility.ID)
}

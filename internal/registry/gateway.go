package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"oidcsync/internal/domain"
	"oidcsync/internal/observability"
)

// Manager names on the registry RPC surface.
const (
	managerAttributes = "attributesManager"
	managerFacilities = "facilitiesManager"
	managerGroups     = "groupsManager"
	managerSearcher   = "searcher"
)

// Gateway is the registry surface the sync engine depends on.
type Gateway interface {
	// FacilitiesByAttribute returns every facility whose attribute attrName
	// holds attrValue.
	FacilitiesByAttribute(ctx context.Context, attrName, attrValue string) ([]domain.Facility, error)

	// FacilityAttributes fetches the named attributes of one facility,
	// keyed by URN.
	FacilityAttributes(ctx context.Context, facilityID int64, attrNames []string) (map[string]domain.Attribute, error)

	// SetFacilityAttributes writes the given attributes back to a facility.
	SetFacilityAttributes(ctx context.Context, facilityID int64, attrs []domain.Attribute) error

	// CreateFacility registers a new facility.
	CreateFacility(ctx context.Context, name, description string) (domain.Facility, error)

	// DeleteFacility removes a facility and everything attached to it.
	DeleteFacility(ctx context.Context, facilityID int64) error

	// CreateGroup creates a group. When the registry reports the group
	// already exists, the existing group is looked up and returned.
	CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error)

	// GroupByName resolves a group by its fully qualified name within a VO.
	// Returns nil when no such group exists.
	GroupByName(ctx context.Context, voID int64, name string) (*domain.Group, error)

	// DeleteGroup removes a group and its members.
	DeleteGroup(ctx context.Context, groupID int64) error

	// AddGroupAsAdmin grants the group administrative rights on the facility.
	AddGroupAsAdmin(ctx context.Context, facilityID, groupID int64) error
}

type rpcGateway struct {
	client *Client
	log    observability.Logger
}

// NewGateway builds the Gateway implementation over a Client.
func NewGateway(client *Client, log observability.Logger) Gateway {
	return &rpcGateway{client: client, log: log.WithComponent("registry")}
}

func (g *rpcGateway) FacilitiesByAttribute(ctx context.Context, attrName, attrValue string) ([]domain.Facility, error) {
	params := map[string]any{
		"attributesWithSearchingValues": map[string]string{attrName: attrValue},
	}
	raw, err := g.client.post(ctx, managerSearcher, "getFacilities", params)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var facilities []domain.Facility
	if err := json.Unmarshal(raw, &facilities); err != nil {
		return nil, fmt.Errorf("decode facilities: %w", err)
	}
	return facilities, nil
}

func (g *rpcGateway) FacilityAttributes(ctx context.Context, facilityID int64, attrNames []string) (map[string]domain.Attribute, error) {
	params := map[string]any{
		"facility":  facilityID,
		"attrNames": attrNames,
	}
	raw, err := g.client.post(ctx, managerAttributes, "getAttributes", params)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]domain.Attribute{}, nil
	}
	var attrs []domain.Attribute
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return AttributesByURN(attrs), nil
}

func (g *rpcGateway) SetFacilityAttributes(ctx context.Context, facilityID int64, attrs []domain.Attribute) error {
	params := map[string]any{
		"facility":   facilityID,
		"attributes": attrs,
	}
	// setAttributes answers with an empty body on success; post maps that
	// to a nil result.
	_, err := g.client.post(ctx, managerAttributes, "setAttributes", params)
	return err
}

// facilityPayload is the wire form of a new facility. The registry rejects
// bean payloads without their bean name.
type facilityPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BeanName    string `json:"beanName"`
}

func (g *rpcGateway) CreateFacility(ctx context.Context, name, description string) (domain.Facility, error) {
	params := map[string]any{
		"facility": facilityPayload{Name: name, Description: description, BeanName: "Facility"},
	}
	raw, err := g.client.post(ctx, managerFacilities, "createFacility", params)
	if err != nil {
		return domain.Facility{}, err
	}
	var facility domain.Facility
	if err := json.Unmarshal(raw, &facility); err != nil {
		return domain.Facility{}, fmt.Errorf("decode created facility: %w", err)
	}
	return facility, nil
}

func (g *rpcGateway) DeleteFacility(ctx context.Context, facilityID int64) error {
	params := map[string]any{
		"facility": facilityID,
		"force":    true,
	}
	_, err := g.client.post(ctx, managerFacilities, "deleteFacility", params)
	return err
}

func (g *rpcGateway) CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error) {
	params := map[string]any{"group": group}
	if group.ParentGroupID > 0 {
		params["parentGroup"] = group.ParentGroupID
	} else {
		params["vo"] = group.VoID
	}
	raw, err := g.client.post(ctx, managerGroups, "createGroup", params)
	if err != nil {
		if IsAlreadyExists(err) {
			existing, lookupErr := g.GroupByName(ctx, group.VoID, group.Name)
			if lookupErr != nil {
				return domain.Group{}, lookupErr
			}
			if existing != nil {
				return *existing, nil
			}
		}
		return domain.Group{}, err
	}
	var created domain.Group
	if err := json.Unmarshal(raw, &created); err != nil {
		return domain.Group{}, fmt.Errorf("decode created group: %w", err)
	}
	return created, nil
}

func (g *rpcGateway) GroupByName(ctx context.Context, voID int64, name string) (*domain.Group, error) {
	params := map[string]any{
		"vo":   voID,
		"name": name,
	}
	raw, err := g.client.post(ctx, managerGroups, "getGroupByName", params)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var group domain.Group
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	return &group, nil
}

func (g *rpcGateway) DeleteGroup(ctx context.Context, groupID int64) error {
	params := map[string]any{
		"group": groupID,
		"force": true,
	}
	_, err := g.client.post(ctx, managerGroups, "deleteGroup", params)
	return err
}

func (g *rpcGateway) AddGroupAsAdmin(ctx context.Context, facilityID, groupID int64) error {
	params := map[string]any{
		"facility":        facilityID,
		"authorizedGroup": groupID,
	}
	_, err := g.client.post(ctx, managerFacilities, "addAdmin", params)
	return err
}

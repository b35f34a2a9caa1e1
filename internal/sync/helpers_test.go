package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"oidcsync/internal/config"
	"oidcsync/internal/domain"
	"oidcsync/internal/observability"
	"oidcsync/internal/secrets"
)

const (
	attrClientID        = "urn:test:def:OIDCClientID"
	attrClientSecret    = "urn:test:def:OIDCClientSecret"
	attrName            = "urn:test:def:serviceName"
	attrDescription     = "urn:test:def:serviceDescription"
	attrRedirectURIs    = "urn:test:def:OIDCRedirectURIs"
	attrPrivacyPolicy   = "urn:test:def:privacyPolicyURL"
	attrContactsA       = "urn:test:def:administratorContact"
	attrContactsB       = "urn:test:def:supportContact"
	attrHomePageA       = "urn:test:def:serviceHomePage"
	attrHomePageB       = "urn:test:def:loginURL"
	attrScopes          = "urn:test:def:requiredScopes"
	attrGrantTypes      = "urn:test:def:OIDCGrantTypes"
	attrResponseTypes   = "urn:test:def:OIDCResponseTypes"
	attrIntrospection   = "urn:test:def:OIDCAllowIntrospection"
	attrPostLogout      = "urn:test:def:OIDCPostLogoutRedirectURIs"
	attrIssueRefresh    = "urn:test:def:OIDCIssueRefreshTokens"
	attrReuseRefresh    = "urn:test:def:OIDCReuseRefreshTokens"
	attrCodeChallenge   = "urn:test:def:OIDCCodeChallengeType"
	attrTokenTimeouts   = "urn:test:def:OIDCTokenTimeouts"
	attrMasterProxy     = "urn:test:def:masterProxyIdentifier"
	attrProxy           = "urn:test:def:proxyIdentifiers"
	attrIsTestSP        = "urn:test:def:isTestSp"
	attrIsOIDC          = "urn:test:def:isOidcFacility"
	attrManagersGroupID = "urn:test:def:managersGroupId"
)

const testProxyIdentifier = "https://login.example.org/idp/"

func testConfig() *config.Config {
	return &config.Config{
		Registry: config.Registry{
			URL:            "http://registry.invalid",
			Serializer:     "json",
			RequestTimeout: time.Second,
		},
		Conf: config.Conf{
			Langs:                   []string{"en", "cs"},
			EncryptionSecret:        "test-passphrase",
			ProxyIdentifierValue:    testProxyIdentifier,
			ManagersGroupVoID:       21,
			ManagersGroupParentID:   9000,
			ManagersGroupParentName: "managers",
		},
		Actions: config.ActionsConfig{
			ToStore:    config.Actions{Create: true, Update: true, Delete: true},
			ToRegistry: config.Actions{Create: true, Update: true, Delete: true},
		},
		Attributes: config.Attributes{
			ClientID:               attrClientID,
			ClientSecret:           attrClientSecret,
			Name:                   attrName,
			Description:            attrDescription,
			RedirectURIs:           attrRedirectURIs,
			PrivacyPolicy:          attrPrivacyPolicy,
			Contacts:               []string{attrContactsA, attrContactsB},
			HomePageURIs:           []string{attrHomePageA, attrHomePageB},
			Scopes:                 attrScopes,
			GrantTypes:             attrGrantTypes,
			ResponseTypes:          attrResponseTypes,
			Introspection:          attrIntrospection,
			PostLogoutRedirectURIs: attrPostLogout,
			IssueRefreshTokens:     attrIssueRefresh,
			ReuseRefreshTokens:     attrReuseRefresh,
			CodeChallengeType:      attrCodeChallenge,
			TokenTimeouts:          attrTokenTimeouts,
			MasterProxyIdentifier:  attrMasterProxy,
			ProxyIdentifier:        attrProxy,
			IsTestSP:               attrIsTestSP,
			IsOIDC:                 attrIsOIDC,
			ManagersGroupID:        attrManagersGroupID,
		},
		Timeouts: config.Timeouts{
			AuthorizationCode: config.GrantTimeouts{AccessToken: 3600, IDToken: 3600, RefreshToken: 7200, DeviceCode: 0},
			Implicit:          config.GrantTimeouts{AccessToken: 14400, IDToken: 14400, RefreshToken: 0, DeviceCode: 0},
			Hybrid:            config.GrantTimeouts{AccessToken: 14400, IDToken: 14400, RefreshToken: 28800, DeviceCode: 0},
			Device:            config.GrantTimeouts{AccessToken: 3600, IDToken: 3600, RefreshToken: 7200, DeviceCode: 600},
		},
	}
}

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	c, err := secrets.NewCipher("test-passphrase")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func testMapper(t *testing.T) *Mapper {
	t.Helper()
	return NewMapper(testConfig(), testCipher(t))
}

func testLogger() observability.Logger {
	return observability.NewLogger(observability.DefaultConfig())
}

func splitURN(urn string) (namespace, friendlyName string) {
	idx := strings.LastIndex(urn, ":")
	return urn[:idx], urn[idx+1:]
}

func attrOf(urn, wireType string, value any) domain.Attribute {
	ns, name := splitURN(urn)
	a := domain.Attribute{Namespace: ns, FriendlyName: name, Type: wireType}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			panic(err)
		}
		a.Value = raw
	} else {
		a.Value = json.RawMessage("null")
	}
	return a
}

func strAttr(urn, val string) domain.Attribute {
	return attrOf(urn, "java.lang.String", val)
}

func listAttr(urn string, vals []string) domain.Attribute {
	return attrOf(urn, "java.util.ArrayList", vals)
}

func mapAttr(urn string, vals map[string]string) domain.Attribute {
	return attrOf(urn, "java.util.LinkedHashMap", vals)
}

func boolAttr(urn string, val bool) domain.Attribute {
	return attrOf(urn, "java.lang.Boolean", val)
}

func bundle(attrs ...domain.Attribute) map[string]domain.Attribute {
	out := make(map[string]domain.Attribute, len(attrs))
	for _, a := range attrs {
		out[a.URN()] = a
	}
	return out
}

// fullDefs returns a facility bundle with every configured attribute
// present as a null-valued definition, the way the registry serves
// attributes nobody has set yet.
func fullDefs() map[string]domain.Attribute {
	defs := []domain.Attribute{
		attrOf(attrClientID, "java.lang.String", nil),
		attrOf(attrClientSecret, "java.lang.String", nil),
		attrOf(attrName, "java.util.LinkedHashMap", nil),
		attrOf(attrDescription, "java.util.LinkedHashMap", nil),
		attrOf(attrRedirectURIs, "java.util.ArrayList", nil),
		attrOf(attrPrivacyPolicy, "java.lang.String", nil),
		attrOf(attrContactsA, "java.lang.String", nil),
		attrOf(attrContactsB, "java.util.ArrayList", nil),
		attrOf(attrHomePageA, "java.lang.String", nil),
		attrOf(attrHomePageB, "java.lang.String", nil),
		attrOf(attrScopes, "java.util.ArrayList", nil),
		attrOf(attrGrantTypes, "java.util.ArrayList", nil),
		attrOf(attrResponseTypes, "java.util.ArrayList", nil),
		attrOf(attrIntrospection, "java.lang.Boolean", nil),
		attrOf(attrPostLogout, "java.util.ArrayList", nil),
		attrOf(attrIssueRefresh, "java.lang.Boolean", nil),
		attrOf(attrReuseRefresh, "java.lang.Boolean", nil),
		attrOf(attrCodeChallenge, "java.lang.String", nil),
		attrOf(attrTokenTimeouts, "java.util.LinkedHashMap", nil),
		attrOf(attrMasterProxy, "java.lang.String", nil),
		attrOf(attrProxy, "java.util.ArrayList", nil),
		attrOf(attrIsTestSP, "java.lang.Boolean", nil),
		attrOf(attrIsOIDC, "java.lang.Boolean", nil),
		attrOf(attrManagersGroupID, "java.lang.Integer", nil),
	}
	return bundle(defs...)
}

// baseBundle is a minimal valid OIDC facility: client ID, name, redirect
// URIs and the authorization code flow, everything else unset.
func baseBundle(clientID string) map[string]domain.Attribute {
	defs := fullDefs()
	set := func(a domain.Attribute) { defs[a.URN()] = a }
	set(strAttr(attrClientID, clientID))
	set(mapAttr(attrName, map[string]string{"en": "Test Service"}))
	set(listAttr(attrRedirectURIs, []string{"https://svc.example.org/cb"}))
	set(listAttr(attrGrantTypes, []string{"authorization code"}))
	set(listAttr(attrScopes, []string{"openid"}))
	return defs
}

// fakeConfirmer answers every prompt with a fixed verdict.
type fakeConfirmer struct {
	accept  bool
	prompts []string
}

func (f *fakeConfirmer) Confirm(prompt string) bool {
	f.prompts = append(f.prompts, prompt)
	return f.accept
}

// fakeGateway is an in-memory registry.Gateway double.
type fakeGateway struct {
	facilities      []domain.Facility
	attrsByFacility map[int64]map[string]domain.Attribute
	searchByAttr    map[string][]domain.Facility // keyed by attrName=attrValue
	groupsByName    map[string]domain.Group
	attrsErr        map[int64]error
	setErr          map[int64]error
	searchErr       error

	nextFacilityID int64
	nextGroupID    int64

	setCalls          map[int64][][]domain.Attribute
	createdFacilities []domain.Facility
	deletedFacilities []int64
	createdGroups     []domain.Group
	deletedGroups     []int64
	admins            map[int64]int64 // facility -> group
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		attrsByFacility: make(map[int64]map[string]domain.Attribute),
		searchByAttr:    make(map[string][]domain.Facility),
		groupsByName:    make(map[string]domain.Group),
		attrsErr:        make(map[int64]error),
		setErr:          make(map[int64]error),
		setCalls:        make(map[int64][][]domain.Attribute),
		admins:          make(map[int64]int64),
		nextFacilityID:  100,
		nextGroupID:     500,
	}
}

func (g *fakeGateway) addFacility(f domain.Facility, attrs map[string]domain.Attribute) {
	g.facilities = append(g.facilities, f)
	g.attrsByFacility[f.ID] = attrs
}

func searchKey(attrName, attrValue string) string {
	return attrName + "=" + attrValue
}

func (g *fakeGateway) FacilitiesByAttribute(ctx context.Context, attrName, attrValue string) ([]domain.Facility, error) {
	if g.searchErr != nil {
		return nil, g.searchErr
	}
	if attrName == attrProxy && attrValue == testProxyIdentifier {
		return g.facilities, nil
	}
	return g.searchByAttr[searchKey(attrName, attrValue)], nil
}

func (g *fakeGateway) FacilityAttributes(ctx context.Context, facilityID int64, attrNames []string) (map[string]domain.Attribute, error) {
	if err := g.attrsErr[facilityID]; err != nil {
		return nil, err
	}
	all, ok := g.attrsByFacility[facilityID]
	if !ok {
		return map[string]domain.Attribute{}, nil
	}
	out := make(map[string]domain.Attribute, len(attrNames))
	for _, name := range attrNames {
		if a, ok := all[name]; ok {
			out[name] = a
		}
	}
	return out, nil
}

func (g *fakeGateway) SetFacilityAttributes(ctx context.Context, facilityID int64, attrs []domain.Attribute) error {
	if err := g.setErr[facilityID]; err != nil {
		return err
	}
	g.setCalls[facilityID] = append(g.setCalls[facilityID], attrs)
	stored, ok := g.attrsByFacility[facilityID]
	if !ok {
		stored = make(map[string]domain.Attribute)
		g.attrsByFacility[facilityID] = stored
	}
	for _, a := range attrs {
		stored[a.URN()] = a
	}
	return nil
}

func (g *fakeGateway) CreateFacility(ctx context.Context, name, description string) (domain.Facility, error) {
	g.nextFacilityID++
	f := domain.Facility{ID: g.nextFacilityID, Name: name, Description: description}
	g.createdFacilities = append(g.createdFacilities, f)
	g.attrsByFacility[f.ID] = fullDefs()
	g.facilities = append(g.facilities, f)
	return f, nil
}

func (g *fakeGateway) DeleteFacility(ctx context.Context, facilityID int64) error {
	g.deletedFacilities = append(g.deletedFacilities, facilityID)
	delete(g.attrsByFacility, facilityID)
	return nil
}

func (g *fakeGateway) CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error) {
	g.nextGroupID++
	group.ID = g.nextGroupID
	g.createdGroups = append(g.createdGroups, group)
	g.groupsByName[group.Name] = group
	return group, nil
}

func (g *fakeGateway) GroupByName(ctx context.Context, voID int64, name string) (*domain.Group, error) {
	if grp, ok := g.groupsByName[name]; ok {
		return &grp, nil
	}
	return nil, nil
}

func (g *fakeGateway) DeleteGroup(ctx context.Context, groupID int64) error {
	g.deletedGroups = append(g.deletedGroups, groupID)
	return nil
}

func (g *fakeGateway) AddGroupAsAdmin(ctx context.Context, facilityID, groupID int64) error {
	g.admins[facilityID] = groupID
	return nil
}

// lastSetBundle flattens all attributes written to one facility into a map.
func (g *fakeGateway) lastSetBundle(facilityID int64) map[string]domain.Attribute {
	out := make(map[string]domain.Attribute)
	for _, call := range g.setCalls[facilityID] {
		for _, a := range call {
			out[a.URN()] = a
		}
	}
	return out
}

func mustValue(t *testing.T, a domain.Attribute) domain.AttributeValue {
	t.Helper()
	v, err := a.AttributeValue()
	if err != nil {
		t.Fatalf("AttributeValue(%s): %v", a.URN(), err)
	}
	return v
}

func assertSet(t *testing.T, got, want []string, what string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(domain.SortedSet(want)) {
		t.Errorf("%s = %v, want %v", what, got, domain.SortedSet(want))
	}
}

package sync

import (
	"fmt"
	"strconv"
	"strings"

	"oidcsync/internal/config"
	"oidcsync/internal/domain"
	"oidcsync/internal/secrets"
)

// Grant types and scopes the mapper derives. The device grant is stored and
// matched in its URN form everywhere.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantHybrid            = "hybrid"
	GrantRefreshToken      = "refresh_token"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"

	ScopeOfflineAccess = "offline_access"
)

// Flow names the registry uses. A closed vocabulary; anything else in the
// flows attribute is ignored.
const (
	flowAuthorizationCode = "authorization code"
	flowImplicit          = "implicit"
	flowHybrid            = "hybrid"
	flowDevice            = "device"
)

// Code challenge type attribute values.
const (
	challengeNone   = "none"
	challengePlain  = "plain code challenge"
	challengeSHA256 = "SHA256 code challenge"
)

// Timeout override map keys.
const (
	timeoutKeyAccessToken  = "access_token"
	timeoutKeyIDToken      = "id_token"
	timeoutKeyRefreshToken = "refresh_token"
	timeoutKeyDeviceCode   = "device_code"
)

var responseTypesByFlow = map[string][]string{
	flowAuthorizationCode: {"code"},
	flowImplicit:          {"id_token", "token", "id_token token", "token id_token"},
	flowHybrid:            {"code token", "code id_token", "code id_token token", "code token id_token"},
}

// refreshEligibleGrants are the grants that may carry a refresh token.
var refreshEligibleGrants = []string{GrantAuthorizationCode, GrantHybrid, GrantDeviceCode}

// MissingAttributeError names the mandatory attribute a facility's bundle
// did not carry. It is attributable to that one facility only.
type MissingAttributeError struct {
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("mandatory attribute %s has no value", e.Attribute)
}

// Mapper converts between the registry's attribute bundles and client
// records. All transformations are pure apart from secret en/decryption.
type Mapper struct {
	attrs    config.Attributes
	conf     config.Conf
	timeouts config.Timeouts
	cipher   *secrets.Cipher
}

// NewMapper builds a Mapper from the loaded configuration.
func NewMapper(cfg *config.Config, cipher *secrets.Cipher) *Mapper {
	return &Mapper{
		attrs:    cfg.Attributes,
		conf:     cfg.Conf,
		timeouts: cfg.Timeouts,
		cipher:   cipher,
	}
}

// ClientID extracts the client ID from a facility's bundle. An empty string
// means the facility is not OIDC-managed.
func (m *Mapper) ClientID(attrs map[string]domain.Attribute) (string, error) {
	v, ok, err := m.value(attrs, m.attrs.ClientID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &MissingAttributeError{Attribute: m.attrs.ClientID}
	}
	return v.AsString(), nil
}

// ToClientRecord maps one facility's attribute bundle to a client record.
func (m *Mapper) ToClientRecord(attrs map[string]domain.Attribute) (*domain.ClientRecord, error) {
	rec := &domain.ClientRecord{}

	clientID, err := m.require(attrs, m.attrs.ClientID)
	if err != nil {
		return nil, err
	}
	rec.ClientID = clientID.AsString()

	secret, err := m.optional(attrs, m.attrs.ClientSecret, domain.TypeString)
	if err != nil {
		return nil, err
	}
	rec.ClientSecret, err = m.cipher.Decrypt(secret.AsString())
	if err != nil {
		return nil, fmt.Errorf("client %s: decrypt secret: %w", rec.ClientID, err)
	}

	name, err := m.require(attrs, m.attrs.Name)
	if err != nil {
		return nil, err
	}
	rec.ClientName = localizedText(name)

	description, err := m.optional(attrs, m.attrs.Description, domain.TypeMap)
	if err != nil {
		return nil, err
	}
	rec.ClientDescription = localizedText(description)

	policy, err := m.optional(attrs, m.attrs.PrivacyPolicy, domain.TypeString)
	if err != nil {
		return nil, err
	}
	rec.PolicyURI = localizedText(policy)

	redirects, err := m.require(attrs, m.attrs.RedirectURIs)
	if err != nil {
		return nil, err
	}
	rec.RedirectURIs = domain.SortedSet(redirects.AsList())

	scopes, err := m.optional(attrs, m.attrs.Scopes, domain.TypeList)
	if err != nil {
		return nil, err
	}
	rec.Scope = domain.SortedSet(scopes.AsList())

	postLogout, err := m.optional(attrs, m.attrs.PostLogoutRedirectURIs, domain.TypeList)
	if err != nil {
		return nil, err
	}
	rec.PostLogoutRedirectURIs = domain.SortedSet(postLogout.AsList())

	if err := m.collectContacts(attrs, rec); err != nil {
		return nil, err
	}
	if err := m.pickClientURI(attrs, rec); err != nil {
		return nil, err
	}

	introspection, err := m.optional(attrs, m.attrs.Introspection, domain.TypeBool)
	if err != nil {
		return nil, err
	}
	rec.AllowIntrospection = introspection.AsBool()

	flowsAttr, err := m.require(attrs, m.attrs.GrantTypes)
	if err != nil {
		return nil, err
	}
	flows := lowercase(flowsAttr.AsList())
	deriveGrants(rec, flows)

	if err := m.applyPKCE(attrs, rec); err != nil {
		return nil, err
	}
	if err := m.applyRefreshTokens(attrs, rec); err != nil {
		return nil, err
	}
	if err := m.applyTimeouts(attrs, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// deriveGrants unions the grant and response type sets contributed by each
// recognized flow.
func deriveGrants(rec *domain.ClientRecord, flows []string) {
	var grants, responses []string
	for _, flow := range flows {
		switch flow {
		case flowAuthorizationCode:
			grants = append(grants, GrantAuthorizationCode)
		case flowImplicit:
			grants = append(grants, GrantImplicit)
		case flowHybrid:
			grants = append(grants, GrantHybrid, GrantAuthorizationCode)
		case flowDevice:
			grants = append(grants, GrantDeviceCode)
		}
		responses = append(responses, responseTypesByFlow[flow]...)
	}
	rec.GrantTypes = domain.SortedSet(grants)
	rec.ResponseTypes = domain.SortedSet(responses)
}

// applyPKCE reads the code-challenge attribute when the client runs the
// authorization code grant. A PKCE client is public: the secret is cleared
// and the token endpoint auth method forced to none.
func (m *Mapper) applyPKCE(attrs map[string]domain.Attribute, rec *domain.ClientRecord) error {
	if !rec.HasGrantType(GrantAuthorizationCode) {
		return nil
	}
	challenge, err := m.optional(attrs, m.attrs.CodeChallengeType, domain.TypeString)
	if err != nil {
		return err
	}
	// The registry stores the challenge type in mixed case depending on who
	// filled the form; compare case-insensitively.
	switch value := challenge.AsString(); {
	case strings.EqualFold(value, challengePlain):
		rec.CodeChallengeMethod = domain.PKCEMethodPlain
	case strings.EqualFold(value, challengeSHA256):
		rec.CodeChallengeMethod = domain.PKCEMethodS256
	default:
		// challengeNone, empty, or unrecognized: no PKCE.
		return nil
	}
	rec.ClientSecret = ""
	rec.TokenEndpointAuthMethod = domain.AuthMethodNone
	return nil
}

// applyRefreshTokens adds the refresh-token grant when the client's grants
// allow it and either the explicit flag or an offline_access scope asks
// for it.
func (m *Mapper) applyRefreshTokens(attrs map[string]domain.Attribute, rec *domain.ClientRecord) error {
	eligible := false
	for _, g := range refreshEligibleGrants {
		if rec.HasGrantType(g) {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil
	}

	issue, err := m.optional(attrs, m.attrs.IssueRefreshTokens, domain.TypeBool)
	if err != nil {
		return err
	}
	if !issue.AsBool() && !rec.HasScope(ScopeOfflineAccess) {
		return nil
	}

	rec.AddScope(ScopeOfflineAccess)
	rec.AddGrantType(GrantRefreshToken)
	rec.ClearAccessTokensOnRefresh = true

	reuse, err := m.optional(attrs, m.attrs.ReuseRefreshTokens, domain.TypeBool)
	if err != nil {
		return err
	}
	rec.ReuseRefreshToken = reuse.AsBool()
	return nil
}

// applyTimeouts merges the per-grant lifetime defaults monotonically, then
// lets the per-client override map win for any field it names.
func (m *Mapper) applyTimeouts(attrs map[string]domain.Attribute, rec *domain.ClientRecord) error {
	byGrant := map[string]config.GrantTimeouts{
		GrantAuthorizationCode: m.timeouts.AuthorizationCode,
		GrantImplicit:          m.timeouts.Implicit,
		GrantHybrid:            m.timeouts.Hybrid,
		GrantDeviceCode:        m.timeouts.Device,
	}
	for grant, defaults := range byGrant {
		if !rec.HasGrantType(grant) {
			continue
		}
		raiseTo(&rec.AccessTokenValiditySeconds, defaults.AccessToken)
		raiseTo(&rec.IDTokenValiditySeconds, defaults.IDToken)
		raiseTo(&rec.RefreshTokenValiditySeconds, defaults.RefreshToken)
		raiseTo(&rec.DeviceCodeValiditySeconds, defaults.DeviceCode)
	}

	override, err := m.optional(attrs, m.attrs.TokenTimeouts, domain.TypeMap)
	if err != nil {
		return err
	}
	for key, raw := range override.AsMap() {
		seconds, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("client %s: timeout override %s=%q is not a number", rec.ClientID, key, raw)
		}
		switch key {
		case timeoutKeyAccessToken:
			rec.AccessTokenValiditySeconds = seconds
		case timeoutKeyIDToken:
			rec.IDTokenValiditySeconds = seconds
		case timeoutKeyRefreshToken:
			rec.RefreshTokenValiditySeconds = seconds
		case timeoutKeyDeviceCode:
			rec.DeviceCodeValiditySeconds = seconds
		}
	}
	return nil
}

func raiseTo(current *int, candidate int) {
	if candidate > *current {
		*current = candidate
	}
}

// collectContacts unions the values of every configured contact attribute
// into one deduplicated, sorted set.
func (m *Mapper) collectContacts(attrs map[string]domain.Attribute, rec *domain.ClientRecord) error {
	var all []string
	for _, name := range m.attrs.Contacts {
		v, ok, err := m.value(attrs, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		all = append(all, v.AsList()...)
	}
	rec.Contacts = domain.SortedSet(all)
	return nil
}

// pickClientURI scans the home-page attributes in priority order and keeps
// the first non-empty value. Registries serve home pages as plain strings,
// lists, or localized maps; a map contributes its "en" entry.
func (m *Mapper) pickClientURI(attrs map[string]domain.Attribute, rec *domain.ClientRecord) error {
	for _, name := range m.attrs.HomePageURIs {
		v, ok, err := m.value(attrs, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		var candidates []string
		if v.Type == domain.TypeMap {
			candidates = []string{v.AsMap()["en"]}
		} else {
			candidates = v.AsList()
		}
		for _, candidate := range candidates {
			if candidate != "" {
				rec.ClientURI = candidate
				return nil
			}
		}
	}
	return nil
}

// value returns the typed value of one attribute, reporting whether the
// bundle carried it at all.
func (m *Mapper) value(attrs map[string]domain.Attribute, urn string) (domain.AttributeValue, bool, error) {
	attr, ok := attrs[urn]
	if !ok {
		return domain.AttributeValue{}, false, nil
	}
	v, err := attr.AttributeValue()
	if err != nil {
		return domain.AttributeValue{}, false, err
	}
	return v, true, nil
}

// require fetches an attribute that must be present and non-null.
func (m *Mapper) require(attrs map[string]domain.Attribute, urn string) (domain.AttributeValue, error) {
	v, ok, err := m.value(attrs, urn)
	if err != nil {
		return domain.AttributeValue{}, err
	}
	if !ok || v.IsNull() {
		return domain.AttributeValue{}, &MissingAttributeError{Attribute: urn}
	}
	return v, nil
}

// optional fetches an attribute that may be absent; absence reads as a null
// value of the expected type.
func (m *Mapper) optional(attrs map[string]domain.Attribute, urn string, typ domain.AttributeType) (domain.AttributeValue, error) {
	v, ok, err := m.value(attrs, urn)
	if err != nil {
		return domain.AttributeValue{}, err
	}
	if !ok {
		return domain.NullValue(urn, typ), nil
	}
	return v, nil
}

// localizedText reads a display text: the "en" entry of a localized map, or
// the plain string for untyped-string attributes.
func localizedText(v domain.AttributeValue) string {
	switch v.Type {
	case domain.TypeMap:
		return v.AsMap()["en"]
	case domain.TypeString:
		return v.AsString()
	default:
		return ""
	}
}

func lowercase(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.ToLower(v)
	}
	return out
}

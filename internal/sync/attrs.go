package sync

import (
	"oidcsync/internal/domain"
)

// ToAttributes maps a client record onto a facility's attribute bundle.
// fetched holds the facility's current attributes; their definitions carry
// the wire types the registry expects back. The test-SP flag is written on
// creation only, never again.
//
// The contact attribute is single-valued on the registry side, so only the
// first contact is written even though the read side unions several
// attributes. That asymmetry is inherited from the registry schema.
func (m *Mapper) ToAttributes(rec *domain.ClientRecord, fetched map[string]domain.Attribute, create bool) ([]domain.Attribute, error) {
	var out []domain.Attribute

	add := func(urn string, value any) error {
		attr, ok := fetched[urn]
		if !ok {
			return &MissingAttributeError{Attribute: urn}
		}
		if err := attr.SetValue(value); err != nil {
			return err
		}
		out = append(out, attr)
		return nil
	}

	if err := add(m.attrs.ClientID, rec.ClientID); err != nil {
		return nil, err
	}

	if rec.ClientSecret != "" {
		encrypted, err := m.secretCiphertext(rec.ClientSecret, fetched)
		if err != nil {
			return nil, err
		}
		if err := add(m.attrs.ClientSecret, encrypted); err != nil {
			return nil, err
		}
	}

	if err := add(m.attrs.Name, m.localize(rec.ClientName)); err != nil {
		return nil, err
	}
	description := rec.ClientDescription
	if description == "" {
		description = rec.ClientName
	}
	if err := add(m.attrs.Description, m.localize(description)); err != nil {
		return nil, err
	}

	if err := add(m.attrs.PrivacyPolicy, rec.PolicyURI); err != nil {
		return nil, err
	}

	if len(rec.Contacts) > 0 && len(m.attrs.Contacts) > 0 {
		if err := add(m.attrs.Contacts[0], rec.Contacts[0]); err != nil {
			return nil, err
		}
	}

	if err := add(m.attrs.RedirectURIs, orEmptyList(rec.RedirectURIs)); err != nil {
		return nil, err
	}
	if err := add(m.attrs.Scopes, orEmptyList(rec.Scope)); err != nil {
		return nil, err
	}
	if err := add(m.attrs.GrantTypes, flowsFromGrants(rec)); err != nil {
		return nil, err
	}
	if err := add(m.attrs.ResponseTypes, orEmptyList(rec.ResponseTypes)); err != nil {
		return nil, err
	}
	if err := add(m.attrs.PostLogoutRedirectURIs, orEmptyList(rec.PostLogoutRedirectURIs)); err != nil {
		return nil, err
	}

	if err := add(m.attrs.Introspection, rec.AllowIntrospection); err != nil {
		return nil, err
	}
	if err := add(m.attrs.IssueRefreshTokens, rec.HasGrantType(GrantRefreshToken)); err != nil {
		return nil, err
	}
	if err := add(m.attrs.ReuseRefreshTokens, rec.ReuseRefreshToken); err != nil {
		return nil, err
	}
	if err := add(m.attrs.CodeChallengeType, challengeFromMethod(rec.CodeChallengeMethod)); err != nil {
		return nil, err
	}

	if err := add(m.attrs.MasterProxyIdentifier, m.conf.ProxyIdentifierValue); err != nil {
		return nil, err
	}
	if err := add(m.attrs.ProxyIdentifier, []string{m.conf.ProxyIdentifierValue}); err != nil {
		return nil, err
	}
	if err := add(m.attrs.IsOIDC, true); err != nil {
		return nil, err
	}
	if create {
		if err := add(m.attrs.IsTestSP, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// secretCiphertext reuses the ciphertext already stored on the facility
// when it still decrypts to the same plaintext. Encryption is randomized,
// so re-encrypting an unchanged secret would look like a change on every
// pass.
func (m *Mapper) secretCiphertext(plaintext string, fetched map[string]domain.Attribute) (string, error) {
	if attr, ok := fetched[m.attrs.ClientSecret]; ok {
		if v, err := attr.AttributeValue(); err == nil && !v.IsNull() {
			current := v.AsString()
			if decrypted, err := m.cipher.Decrypt(current); err == nil && decrypted == plaintext {
				return current, nil
			}
		}
	}
	return m.cipher.Encrypt(plaintext)
}

// localize fans a display text out to every configured language. The
// registry stores these texts as language-keyed maps.
func (m *Mapper) localize(text string) map[string]string {
	out := make(map[string]string, len(m.conf.Langs))
	for _, lang := range m.conf.Langs {
		out[lang] = text
	}
	return out
}

// flowsFromGrants is the inverse of deriveGrants: the registry stores the
// human-readable flow vocabulary, not the grant URNs. The hybrid flow
// implies the authorization code grant, so that grant is only reported as
// its own flow when hybrid is absent.
func flowsFromGrants(rec *domain.ClientRecord) []string {
	var flows []string
	if rec.HasGrantType(GrantAuthorizationCode) && !rec.HasGrantType(GrantHybrid) {
		flows = append(flows, flowAuthorizationCode)
	}
	if rec.HasGrantType(GrantImplicit) {
		flows = append(flows, flowImplicit)
	}
	if rec.HasGrantType(GrantHybrid) {
		flows = append(flows, flowHybrid)
	}
	if rec.HasGrantType(GrantDeviceCode) {
		flows = append(flows, flowDevice)
	}
	return flows
}

func challengeFromMethod(method string) string {
	switch method {
	case domain.PKCEMethodPlain:
		return challengePlain
	case domain.PKCEMethodS256:
		return challengeSHA256
	default:
		return challengeNone
	}
}

func orEmptyList(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}

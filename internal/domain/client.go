package domain

import (
	"fmt"
	"strings"
	"time"
)

// Token endpoint auth methods the reconciler assigns.
const (
	AuthMethodNone = "none"
)

// PKCE code challenge methods.
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// ClientRecord is one registered OIDC client as stored in the client store.
// The client ID is the business key; ID is the store's internal row key.
// List-valued fields are kept as sorted, deduplicated sets (see SortedSet)
// so that comparisons and diff reports are order-insensitive.
type ClientRecord struct {
	ID                int64
	ClientID          string
	ClientSecret      string
	ClientName        string
	ClientDescription string
	ClientURI         string
	PolicyURI         string

	RedirectURIs           []string
	Scope                  []string
	GrantTypes             []string
	ResponseTypes          []string
	PostLogoutRedirectURIs []string
	Contacts               []string

	AllowIntrospection      bool
	CodeChallengeMethod     string
	TokenEndpointAuthMethod string

	AccessTokenValiditySeconds  int
	IDTokenValiditySeconds      int
	RefreshTokenValiditySeconds int
	DeviceCodeValiditySeconds   int

	ClearAccessTokensOnRefresh bool
	ReuseRefreshToken          bool

	CreatedAt time.Time
}

// Clone returns a deep copy. The interactive update flow maps new values
// onto a scratch copy so the original stays intact for the diff.
func (c *ClientRecord) Clone() *ClientRecord {
	dup := *c
	dup.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	dup.Scope = append([]string(nil), c.Scope...)
	dup.GrantTypes = append([]string(nil), c.GrantTypes...)
	dup.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	dup.PostLogoutRedirectURIs = append([]string(nil), c.PostLogoutRedirectURIs...)
	dup.Contacts = append([]string(nil), c.Contacts...)
	return &dup
}

// HasScope reports whether the client's scope set contains s.
func (c *ClientRecord) HasScope(s string) bool {
	return ContainsString(c.Scope, s)
}

// HasGrantType reports whether the client's grant set contains g.
func (c *ClientRecord) HasGrantType(g string) bool {
	return ContainsString(c.GrantTypes, g)
}

// AddScope inserts s into the scope set, keeping it sorted.
func (c *ClientRecord) AddScope(s string) {
	c.Scope = SortedSet(append(c.Scope, s))
}

// AddGrantType inserts g into the grant set, keeping it sorted.
func (c *ClientRecord) AddGrantType(g string) {
	c.GrantTypes = SortedSet(append(c.GrantTypes, g))
}

// String renders the record for interactive previews; the secret is masked.
func (c *ClientRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "client_id: %s\n", c.ClientID)
	fmt.Fprintf(&b, "  name: %s\n", c.ClientName)
	fmt.Fprintf(&b, "  description: %s\n", c.ClientDescription)
	if c.ClientSecret != "" {
		b.WriteString("  secret: [set]\n")
	} else {
		b.WriteString("  secret: [none]\n")
	}
	fmt.Fprintf(&b, "  client_uri: %s\n", c.ClientURI)
	fmt.Fprintf(&b, "  policy_uri: %s\n", c.PolicyURI)
	fmt.Fprintf(&b, "  redirect_uris: %v\n", c.RedirectURIs)
	fmt.Fprintf(&b, "  scope: %v\n", c.Scope)
	fmt.Fprintf(&b, "  grant_types: %v\n", c.GrantTypes)
	fmt.Fprintf(&b, "  response_types: %v\n", c.ResponseTypes)
	fmt.Fprintf(&b, "  post_logout_redirect_uris: %v\n", c.PostLogoutRedirectURIs)
	fmt.Fprintf(&b, "  contacts: %v\n", c.Contacts)
	fmt.Fprintf(&b, "  allow_introspection: %t\n", c.AllowIntrospection)
	if c.CodeChallengeMethod != "" {
		fmt.Fprintf(&b, "  code_challenge_method: %s\n", c.CodeChallengeMethod)
	}
	fmt.Fprintf(&b, "  token_validity (access/id/refresh/device): %d/%d/%d/%d\n",
		c.AccessTokenValiditySeconds, c.IDTokenValiditySeconds,
		c.RefreshTokenValiditySeconds, c.DeviceCodeValiditySeconds)
	return b.String()
}

// Package config loads and validates the synchronizer configuration from a
// YAML file with environment-variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry configures the connection to the registry RPC endpoint.
type Registry struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Serializer     string        `yaml:"serializer"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// Store configures the client-store backend.
type Store struct {
	Driver string `yaml:"driver"` // memory, sqlite or postgres (build-dependent)
	DSN    string `yaml:"dsn"`
}

// Conf holds the run-wide settings that are not attribute names or action
// flags: languages for localized writes, the cipher passphrase, the proxy
// identifier this deployment owns, and the managers-group location.
type Conf struct {
	Langs                   []string `yaml:"langs"`
	EncryptionSecret        string   `yaml:"encryption_secret"`
	ProxyIdentifierValue    string   `yaml:"proxy_identifier_value"`
	ManagersGroupVoID       int64    `yaml:"managers_group_vo_id"`
	ManagersGroupParentID   int64    `yaml:"managers_group_parent_id"`
	ManagersGroupParentName string   `yaml:"managers_group_parent_name"`
	StatusFile              string   `yaml:"status_file"`
}

// Actions is the per-direction enable matrix. Deletion is opt-in.
type Actions struct {
	Create bool `yaml:"create"`
	Update bool `yaml:"update"`
	Delete bool `yaml:"delete"`
}

// ActionsConfig groups both directions plus the protected allow-list.
type ActionsConfig struct {
	ToStore            Actions  `yaml:"to_store"`
	ToRegistry         Actions  `yaml:"to_registry"`
	ProtectedClientIDs []string `yaml:"protected_client_ids"`
}

// Attributes maps each logical field to the registry attribute URN that
// carries it. Contacts and HomePageURIs are priority-ordered lists of URNs.
type Attributes struct {
	ClientID               string   `yaml:"client_id"`
	ClientSecret           string   `yaml:"client_secret"`
	Name                   string   `yaml:"name"`
	Description            string   `yaml:"description"`
	RedirectURIs           string   `yaml:"redirect_uris"`
	PrivacyPolicy          string   `yaml:"privacy_policy"`
	Contacts               []string `yaml:"contacts"`
	HomePageURIs           []string `yaml:"home_page_uris"`
	Scopes                 string   `yaml:"scopes"`
	GrantTypes             string   `yaml:"grant_types"`
	ResponseTypes          string   `yaml:"response_types"`
	Introspection          string   `yaml:"introspection"`
	PostLogoutRedirectURIs string   `yaml:"post_logout_redirect_uris"`
	IssueRefreshTokens     string   `yaml:"issue_refresh_tokens"`
	ReuseRefreshTokens     string   `yaml:"reuse_refresh_tokens"`
	CodeChallengeType      string   `yaml:"code_challenge_type"`
	TokenTimeouts          string   `yaml:"token_timeouts"`
	MasterProxyIdentifier  string   `yaml:"master_proxy_identifier"`
	ProxyIdentifier        string   `yaml:"proxy_identifier"`
	IsTestSP               string   `yaml:"is_test_sp"`
	IsOIDC                 string   `yaml:"is_oidc"`
	ManagersGroupID        string   `yaml:"managers_group_id"`
}

// Names returns every attribute URN one facility fetch must request.
func (a Attributes) Names() []string {
	names := []string{
		a.ClientID, a.ClientSecret, a.Name, a.Description, a.RedirectURIs,
		a.PrivacyPolicy, a.Scopes, a.GrantTypes, a.ResponseTypes,
		a.Introspection, a.PostLogoutRedirectURIs, a.IssueRefreshTokens,
		a.ReuseRefreshTokens, a.CodeChallengeType, a.TokenTimeouts,
		a.MasterProxyIdentifier, a.ProxyIdentifier, a.IsTestSP, a.IsOIDC,
		a.ManagersGroupID,
	}
	names = append(names, a.Contacts...)
	names = append(names, a.HomePageURIs...)
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// GrantTimeouts are the default token lifetimes (seconds) for one grant type.
type GrantTimeouts struct {
	AccessToken  int `yaml:"access_token"`
	IDToken      int `yaml:"id_token"`
	RefreshToken int `yaml:"refresh_token"`
	DeviceCode   int `yaml:"device_code"`
}

// Timeouts holds the per-grant-type lifetime defaults.
type Timeouts struct {
	AuthorizationCode GrantTimeouts `yaml:"authorization_code"`
	Implicit          GrantTimeouts `yaml:"implicit"`
	Hybrid            GrantTimeouts `yaml:"hybrid"`
	Device            GrantTimeouts `yaml:"device"`
}

// Config is the full synchronizer configuration.
type Config struct {
	Registry   Registry      `yaml:"registry"`
	Store      Store         `yaml:"store"`
	Conf       Conf          `yaml:"conf"`
	Actions    ActionsConfig `yaml:"actions"`
	Attributes Attributes    `yaml:"attributes"`
	Timeouts   Timeouts      `yaml:"timeouts"`
}

func defaults() *Config {
	return &Config{
		Registry: Registry{
			Serializer:     "json",
			RequestTimeout: 30 * time.Second,
		},
		Store: Store{Driver: "memory"},
		Actions: ActionsConfig{
			ToStore:    Actions{Create: true, Update: true, Delete: false},
			ToRegistry: Actions{Create: true, Update: true, Delete: false},
		},
		Timeouts: Timeouts{
			AuthorizationCode: GrantTimeouts{AccessToken: 3600, IDToken: 3600, RefreshToken: 7200, DeviceCode: 0},
			Implicit:          GrantTimeouts{AccessToken: 14400, IDToken: 14400, RefreshToken: 0, DeviceCode: 0},
			Hybrid:            GrantTimeouts{AccessToken: 14400, IDToken: 14400, RefreshToken: 28800, DeviceCode: 0},
			Device:            GrantTimeouts{AccessToken: 3600, IDToken: 3600, RefreshToken: 7200, DeviceCode: 600},
		},
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. Environment variables win over YAML values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("OIDCSYNC_REGISTRY_URL"); v != "" {
		cfg.Registry.URL = v
	}
	if v := os.Getenv("OIDCSYNC_REGISTRY_USERNAME"); v != "" {
		cfg.Registry.Username = v
	}
	if v := os.Getenv("OIDCSYNC_REGISTRY_PASSWORD"); v != "" {
		cfg.Registry.Password = v
	}
	if v := os.Getenv("OIDCSYNC_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("OIDCSYNC_ENCRYPTION_SECRET"); v != "" {
		cfg.Conf.EncryptionSecret = v
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize applies derived rules: the URL has no trailing slash, the
// serializer is a bare path segment, and "en" is always in the language set.
func (c *Config) normalize() {
	c.Registry.URL = strings.TrimRight(c.Registry.URL, "/")
	c.Registry.Serializer = strings.ReplaceAll(c.Registry.Serializer, "/", "")

	langs := []string{"en"}
	for _, l := range c.Conf.Langs {
		l = strings.ToLower(l)
		if l != "en" {
			langs = append(langs, l)
		}
	}
	c.Conf.Langs = dedupe(langs)
}

// Validate checks the fields every run depends on.
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	if c.Registry.Serializer == "" {
		return errors.New("registry.serializer cannot be empty")
	}
	if c.Conf.EncryptionSecret == "" {
		return errors.New("conf.encryption_secret is required (set OIDCSYNC_ENCRYPTION_SECRET or yaml)")
	}
	if c.Conf.ProxyIdentifierValue == "" {
		return errors.New("conf.proxy_identifier_value is required")
	}
	if c.Attributes.ClientID == "" {
		return errors.New("attributes.client_id is required")
	}
	if c.Attributes.ProxyIdentifier == "" {
		return errors.New("attributes.proxy_identifier is required")
	}
	if c.Registry.RequestTimeout <= 0 {
		return errors.New("registry.request_timeout must be positive")
	}
	return nil
}

// ProtectedIDs returns the protected client IDs as a set.
func (c *Config) ProtectedIDs() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Actions.ProtectedClientIDs))
	for _, id := range c.Actions.ProtectedClientIDs {
		set[id] = struct{}{}
	}
	return set
}

func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := vals[:0]
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

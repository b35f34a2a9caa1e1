package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
registry:
  url: https://registry.example.org/rpc/
  username: sync
  password: pw
conf:
  encryption_secret: passphrase
  proxy_identifier_value: https://login.example.org/idp/
attributes:
  client_id: "urn:test:def:OIDCClientID"
  proxy_identifier: "urn:test:def:proxyIdentifiers"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registry.URL != "https://registry.example.org/rpc" {
		t.Errorf("URL = %q, want trailing slash trimmed", cfg.Registry.URL)
	}
	if cfg.Registry.Serializer != "json" {
		t.Errorf("serializer = %q", cfg.Registry.Serializer)
	}
	if cfg.Registry.RequestTimeout != 30*time.Second {
		t.Errorf("request timeout = %v", cfg.Registry.RequestTimeout)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
}

func TestLoadDefaultsAreDeleteDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Actions.ToStore.Create || !cfg.Actions.ToStore.Update || cfg.Actions.ToStore.Delete {
		t.Errorf("to_store actions = %+v, want create+update on, delete off", cfg.Actions.ToStore)
	}
	if !cfg.Actions.ToRegistry.Create || !cfg.Actions.ToRegistry.Update || cfg.Actions.ToRegistry.Delete {
		t.Errorf("to_registry actions = %+v, want create+update on, delete off", cfg.Actions.ToRegistry)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OIDCSYNC_REGISTRY_PASSWORD", "env-pw")
	t.Setenv("OIDCSYNC_ENCRYPTION_SECRET", "env-secret")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registry.Password != "env-pw" {
		t.Errorf("password = %q, want the env value", cfg.Registry.Password)
	}
	if cfg.Conf.EncryptionSecret != "env-secret" {
		t.Errorf("encryption secret = %q, want the env value", cfg.Conf.EncryptionSecret)
	}
}

func TestLoadLangsAlwaysIncludeEnglish(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "conf:\n", "conf:\n  langs: [CS, sk, cs]\n", 1)
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"en", "cs", "sk"}
	if len(cfg.Conf.Langs) != len(want) {
		t.Fatalf("langs = %v, want %v", cfg.Conf.Langs, want)
	}
	for i, l := range want {
		if cfg.Conf.Langs[i] != l {
			t.Errorf("langs = %v, want %v", cfg.Conf.Langs, want)
			break
		}
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			"missing url",
			func(y string) string { return strings.Replace(y, "url: https://registry.example.org/rpc/", "", 1) },
			"registry.url",
		},
		{
			"missing encryption secret",
			func(y string) string { return strings.Replace(y, "encryption_secret: passphrase", "", 1) },
			"encryption_secret",
		},
		{
			"missing proxy identifier value",
			func(y string) string {
				return strings.Replace(y, "proxy_identifier_value: https://login.example.org/idp/", "", 1)
			},
			"proxy_identifier_value",
		},
		{
			"missing client id attribute",
			func(y string) string { return strings.Replace(y, `client_id: "urn:test:def:OIDCClientID"`, "", 1) },
			"attributes.client_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(minimalYAML)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestNamesSkipsUnsetAttributes(t *testing.T) {
	a := Attributes{
		ClientID:        "urn:test:def:OIDCClientID",
		ProxyIdentifier: "urn:test:def:proxyIdentifiers",
		Contacts:        []string{"urn:test:def:administratorContact"},
	}
	names := a.Names()
	if len(names) != 3 {
		t.Fatalf("names = %v, want only the set attributes", names)
	}
	for _, n := range names {
		if n == "" {
			t.Fatal("empty attribute name returned")
		}
	}
}

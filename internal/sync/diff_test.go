package sync

import (
	"strings"
	"testing"

	"oidcsync/internal/domain"
)

func TestDiffClientsEqualRecordsEmpty(t *testing.T) {
	a := &domain.ClientRecord{
		ClientID:     "client-1",
		ClientName:   "Test Service",
		RedirectURIs: []string{"https://svc.example.org/cb"},
		GrantTypes:   []string{GrantAuthorizationCode},
		Scope:        []string{"openid"},
	}
	if r := DiffClients(a, a.Clone()); !r.Empty() {
		t.Errorf("equal records produced a report:\n%s", r)
	}
}

func TestDiffClientsListOrderInsensitive(t *testing.T) {
	old := &domain.ClientRecord{Scope: []string{"b", "a"}}
	updated := &domain.ClientRecord{Scope: []string{"a", "b"}}
	if r := DiffClients(old, updated); !r.Empty() {
		t.Errorf("reordered list reported as a change:\n%s", r)
	}
}

func TestDiffClientsListChanges(t *testing.T) {
	old := &domain.ClientRecord{Scope: []string{"b", "a"}}
	updated := &domain.ClientRecord{Scope: []string{"a", "c"}}
	r := DiffClients(old, updated)
	out := r.String()
	if !strings.Contains(out, "removed: b") {
		t.Errorf("missing removal of b:\n%s", out)
	}
	if !strings.Contains(out, "added: c") {
		t.Errorf("missing addition of c:\n%s", out)
	}
	if strings.Contains(out, "added: a") || strings.Contains(out, "removed: a") {
		t.Errorf("unchanged element a reported:\n%s", out)
	}
}

func TestDiffClientsScalarAndSecret(t *testing.T) {
	old := &domain.ClientRecord{ClientName: "Old Name", ClientSecret: "s1"}
	updated := &domain.ClientRecord{ClientName: "New Name", ClientSecret: "s2"}
	out := DiffClients(old, updated).String()
	if !strings.Contains(out, "changed: Old Name to: New Name") {
		t.Errorf("missing name change:\n%s", out)
	}
	if !strings.Contains(out, "changed: (hidden) to: (hidden)") {
		t.Errorf("secret change not masked:\n%s", out)
	}
	if strings.Contains(out, "s1") || strings.Contains(out, "s2") {
		t.Errorf("secret plaintext leaked into the report:\n%s", out)
	}
}

func TestDiffClientsValidityChange(t *testing.T) {
	old := &domain.ClientRecord{AccessTokenValiditySeconds: 3600}
	updated := &domain.ClientRecord{AccessTokenValiditySeconds: 7200}
	out := DiffClients(old, updated).String()
	if !strings.Contains(out, "access_token_validity") || !strings.Contains(out, "changed: 3600 to: 7200") {
		t.Errorf("missing validity change:\n%s", out)
	}
}

func TestDiffAttributesUnchangedEmpty(t *testing.T) {
	old := bundle(
		strAttr(attrClientID, "client-1"),
		listAttr(attrScopes, []string{"openid", "profile"}),
	)
	updated := []domain.Attribute{
		strAttr(attrClientID, "client-1"),
		listAttr(attrScopes, []string{"openid", "profile"}),
	}
	r, err := DiffAttributes(old, updated)
	if err != nil {
		t.Fatalf("DiffAttributes: %v", err)
	}
	if !r.Empty() {
		t.Errorf("unchanged attributes produced a report:\n%s", r)
	}
}

func TestDiffAttributesChanges(t *testing.T) {
	old := bundle(
		listAttr(attrScopes, []string{"openid", "profile"}),
		mapAttr(attrName, map[string]string{"en": "Old", "cs": "Stary"}),
	)
	updated := []domain.Attribute{
		listAttr(attrScopes, []string{"openid", "email"}),
		mapAttr(attrName, map[string]string{"en": "New", "cs": "Stary"}),
		boolAttr(attrIsOIDC, true),
	}
	r, err := DiffAttributes(old, updated)
	if err != nil {
		t.Fatalf("DiffAttributes: %v", err)
	}
	out := r.String()
	if !strings.Contains(out, "removed: profile") || !strings.Contains(out, "added: email") {
		t.Errorf("scope list diff wrong:\n%s", out)
	}
	if !strings.Contains(out, "en changed: Old => New") {
		t.Errorf("map diff wrong:\n%s", out)
	}
	if strings.Contains(out, "cs") {
		t.Errorf("unchanged map key reported:\n%s", out)
	}
	if !strings.Contains(out, attrIsOIDC) || !strings.Contains(out, "added: true") {
		t.Errorf("newly set attribute not reported as added:\n%s", out)
	}
}

func TestDiffAttributesIgnoresUntouched(t *testing.T) {
	old := bundle(
		strAttr(attrClientID, "client-1"),
		strAttr(attrPrivacyPolicy, "https://svc.example.org/privacy"),
	)
	updated := []domain.Attribute{strAttr(attrClientID, "client-1")}
	r, err := DiffAttributes(old, updated)
	if err != nil {
		t.Fatalf("DiffAttributes: %v", err)
	}
	if !r.Empty() {
		t.Errorf("attribute absent from the update was reported:\n%s", r)
	}
}

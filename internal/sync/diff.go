package sync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"oidcsync/internal/domain"
)

// Report is a human-readable field-level diff between two versions of the
// same logical entity. An empty report means nothing differs and the
// operator is not prompted.
type Report struct {
	fields []fieldDiff
}

type fieldDiff struct {
	name  string
	lines []string
}

// Empty reports whether no field differs.
func (r *Report) Empty() bool { return len(r.fields) == 0 }

func (r *Report) String() string {
	var b strings.Builder
	for _, f := range r.fields {
		fmt.Fprintf(&b, "%s:\n", f.name)
		for _, line := range f.lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

func (r *Report) add(name string, lines []string) {
	if len(lines) > 0 {
		r.fields = append(r.fields, fieldDiff{name: name, lines: lines})
	}
}

// DiffClients compares two client records field by field. The schema is
// finite, so every field gets an explicit comparator; no reflection.
func DiffClients(old, updated *domain.ClientRecord) *Report {
	r := &Report{}
	r.add("client_id", diffScalar(old.ClientID, updated.ClientID))
	r.add("client_secret", diffSecret(old.ClientSecret, updated.ClientSecret))
	r.add("name", diffScalar(old.ClientName, updated.ClientName))
	r.add("description", diffScalar(old.ClientDescription, updated.ClientDescription))
	r.add("client_uri", diffScalar(old.ClientURI, updated.ClientURI))
	r.add("policy_uri", diffScalar(old.PolicyURI, updated.PolicyURI))
	r.add("redirect_uris", diffLists(old.RedirectURIs, updated.RedirectURIs))
	r.add("scope", diffLists(old.Scope, updated.Scope))
	r.add("grant_types", diffLists(old.GrantTypes, updated.GrantTypes))
	r.add("response_types", diffLists(old.ResponseTypes, updated.ResponseTypes))
	r.add("post_logout_redirect_uris", diffLists(old.PostLogoutRedirectURIs, updated.PostLogoutRedirectURIs))
	r.add("contacts", diffLists(old.Contacts, updated.Contacts))
	r.add("allow_introspection", diffScalar(strconv.FormatBool(old.AllowIntrospection), strconv.FormatBool(updated.AllowIntrospection)))
	r.add("code_challenge_method", diffScalar(old.CodeChallengeMethod, updated.CodeChallengeMethod))
	r.add("token_endpoint_auth_method", diffScalar(old.TokenEndpointAuthMethod, updated.TokenEndpointAuthMethod))
	r.add("access_token_validity", diffScalar(strconv.Itoa(old.AccessTokenValiditySeconds), strconv.Itoa(updated.AccessTokenValiditySeconds)))
	r.add("id_token_validity", diffScalar(strconv.Itoa(old.IDTokenValiditySeconds), strconv.Itoa(updated.IDTokenValiditySeconds)))
	r.add("refresh_token_validity", diffScalar(strconv.Itoa(old.RefreshTokenValiditySeconds), strconv.Itoa(updated.RefreshTokenValiditySeconds)))
	r.add("device_code_validity", diffScalar(strconv.Itoa(old.DeviceCodeValiditySeconds), strconv.Itoa(updated.DeviceCodeValiditySeconds)))
	r.add("clear_access_tokens_on_refresh", diffScalar(strconv.FormatBool(old.ClearAccessTokensOnRefresh), strconv.FormatBool(updated.ClearAccessTokensOnRefresh)))
	r.add("reuse_refresh_token", diffScalar(strconv.FormatBool(old.ReuseRefreshToken), strconv.FormatBool(updated.ReuseRefreshToken)))
	return r
}

// DiffAttributes compares fetched attribute values against the bundle about
// to be written. Attributes not present in the update are left out; they
// are not being touched.
func DiffAttributes(old map[string]domain.Attribute, updated []domain.Attribute) (*Report, error) {
	r := &Report{}
	for _, attr := range updated {
		urn := attr.URN()
		newVal, err := attr.AttributeValue()
		if err != nil {
			return nil, err
		}
		oldVal := domain.NullValue(urn, newVal.Type)
		if oldAttr, ok := old[urn]; ok {
			oldVal, err = oldAttr.AttributeValue()
			if err != nil {
				return nil, err
			}
		}
		r.add(urn, diffValues(oldVal, newVal))
	}
	return r, nil
}

func diffValues(old, updated domain.AttributeValue) []string {
	if old.Equal(updated) {
		return nil
	}
	switch updated.Type {
	case domain.TypeList:
		return diffLists(old.AsList(), updated.AsList())
	case domain.TypeMap:
		return diffMaps(old.AsMap(), updated.AsMap())
	default:
		oldStr, newStr := old.String(), updated.String()
		if old.IsNull() {
			oldStr = ""
		}
		if updated.IsNull() {
			newStr = ""
		}
		return diffScalar(oldStr, newStr)
	}
}

func diffScalar(old, updated string) []string {
	switch {
	case old == updated:
		return nil
	case old == "":
		return []string{fmt.Sprintf("added: %s", updated)}
	case updated == "":
		return []string{fmt.Sprintf("removed: %s", old)}
	default:
		return []string{fmt.Sprintf("changed: %s to: %s", old, updated)}
	}
}

func diffSecret(old, updated string) []string {
	switch {
	case old == updated:
		return nil
	case old == "":
		return []string{"added: (hidden)"}
	case updated == "":
		return []string{"removed: (hidden)"}
	default:
		return []string{"changed: (hidden) to: (hidden)"}
	}
}

// diffLists sorts both sides and walks them with a two-pointer merge, so
// the result is order-insensitive and stable.
func diffLists(old, updated []string) []string {
	a := append([]string(nil), old...)
	b := append([]string(nil), updated...)
	sort.Strings(a)
	sort.Strings(b)

	var lines []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			lines = append(lines, fmt.Sprintf("removed: %s", a[i]))
			i++
		default:
			lines = append(lines, fmt.Sprintf("added: %s", b[j]))
			j++
		}
	}
	for ; i < len(a); i++ {
		lines = append(lines, fmt.Sprintf("removed: %s", a[i]))
	}
	for ; j < len(b); j++ {
		lines = append(lines, fmt.Sprintf("added: %s", b[j]))
	}
	return lines
}

func diffMaps(old, updated map[string]string) []string {
	keys := make(map[string]struct{}, len(old)+len(updated))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range updated {
		keys[k] = struct{}{}
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	var lines []string
	for _, k := range ordered {
		oldVal, inOld := old[k]
		newVal, inNew := updated[k]
		switch {
		case inOld && inNew && oldVal == newVal:
		case inOld && inNew:
			lines = append(lines, fmt.Sprintf("%s changed: %s => %s", k, oldVal, newVal))
		case inNew:
			lines = append(lines, fmt.Sprintf("%s added: %s", k, newVal))
		default:
			lines = append(lines, fmt.Sprintf("%s removed: %s", k, oldVal))
		}
	}
	return lines
}

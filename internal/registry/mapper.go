package registry

import "oidcsync/internal/domain"

// AttributesByURN indexes a fetched attribute list by fully qualified name.
// Later duplicates win; the registry does not serve duplicates in practice.
func AttributesByURN(attrs []domain.Attribute) map[string]domain.Attribute {
	out := make(map[string]domain.Attribute, len(attrs))
	for _, a := range attrs {
		out[a.URN()] = a
	}
	return out
}

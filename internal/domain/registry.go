package domain

import "fmt"

// Facility is a registry-side service registration. A facility represents
// one relying party; it is OIDC-managed iff its client-ID attribute holds a
// non-empty value.
type Facility struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (f Facility) String() string {
	return fmt.Sprintf("Facility[id=%d, name=%s]", f.ID, f.Name)
}

// Group is a registry group. Each OIDC-managed facility owns one managers
// group granted administrative rights over it.
type Group struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	ShortName     string `json:"shortName"`
	Description   string `json:"description"`
	ParentGroupID int64  `json:"parentGroupId,omitempty"`
	VoID          int64  `json:"voId,omitempty"`
	BeanName      string `json:"beanName"`
}

// NewGroup builds a group with the registry bean name filled in; the
// registry rejects group payloads without it.
func NewGroup(name, shortName, description string, parentGroupID, voID int64) Group {
	return Group{
		Name:          name,
		ShortName:     shortName,
		Description:   description,
		ParentGroupID: parentGroupID,
		VoID:          voID,
		BeanName:      "Group",
	}
}

func (g Group) String() string {
	return fmt.Sprintf("Group[id=%d, name=%s]", g.ID, g.Name)
}

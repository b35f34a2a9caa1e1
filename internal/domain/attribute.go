// Package domain holds the entity models shared by the registry gateway,
// the client store, and the reconciliation engine.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// AttributeType identifies the logical type of a registry attribute value.
type AttributeType int

const (
	TypeString AttributeType = iota
	TypeList
	TypeMap
	TypeBool
	TypeInt
)

// registry wire type names and the logical types they map to.
var wireTypes = map[string]AttributeType{
	"java.lang.String":         TypeString,
	"java.lang.LargeString":    TypeString,
	"java.util.ArrayList":      TypeList,
	"java.util.LargeArrayList": TypeList,
	"java.util.LinkedHashMap":  TypeMap,
	"java.util.HashMap":        TypeMap,
	"java.lang.Boolean":        TypeBool,
	"java.lang.Integer":        TypeInt,
	"java.lang.Long":           TypeInt,
}

// AttributeValue is a typed, immutable view of one registry attribute value.
// It is constructed while parsing the registry response; a payload that does
// not match the declared wire type fails at construction, never at use.
//
// Accessing a value through the wrong typed accessor is a programming error
// and panics. A null value is readable through any accessor and yields the
// type's zero value.
type AttributeValue struct {
	Name string
	Type AttributeType

	null bool
	raw  json.RawMessage
	str  string
	list []string
	mp   map[string]string
	b    bool
	i    int64
}

// ParseAttributeValue builds an AttributeValue from the registry wire form.
func ParseAttributeValue(name, wireType string, raw json.RawMessage) (AttributeValue, error) {
	typ, ok := wireTypes[wireType]
	if !ok {
		return AttributeValue{}, fmt.Errorf("attribute %s: unknown wire type %q", name, wireType)
	}
	v := AttributeValue{Name: name, Type: typ, raw: raw}
	if isNullJSON(raw) {
		v.null = true
		return v, nil
	}
	var err error
	switch typ {
	case TypeString:
		err = json.Unmarshal(raw, &v.str)
	case TypeList:
		err = json.Unmarshal(raw, &v.list)
	case TypeMap:
		err = json.Unmarshal(raw, &v.mp)
	case TypeBool:
		err = json.Unmarshal(raw, &v.b)
	case TypeInt:
		err = json.Unmarshal(raw, &v.i)
	}
	if err != nil {
		return AttributeValue{}, fmt.Errorf("attribute %s: payload does not match type %q: %w", name, wireType, err)
	}
	return v, nil
}

// NullValue returns a null attribute value of the given type.
func NullValue(name string, typ AttributeType) AttributeValue {
	return AttributeValue{Name: name, Type: typ, null: true}
}

// StringValue returns a non-null string attribute value. Used by tests and
// by the to-registry direction when composing updates.
func StringValue(name, val string) AttributeValue {
	raw, _ := json.Marshal(val)
	return AttributeValue{Name: name, Type: TypeString, str: val, raw: raw}
}

// ListValue returns a non-null list attribute value.
func ListValue(name string, vals []string) AttributeValue {
	raw, _ := json.Marshal(vals)
	return AttributeValue{Name: name, Type: TypeList, list: vals, raw: raw}
}

// MapValue returns a non-null map attribute value.
func MapValue(name string, vals map[string]string) AttributeValue {
	raw, _ := json.Marshal(vals)
	return AttributeValue{Name: name, Type: TypeMap, mp: vals, raw: raw}
}

// BoolValue returns a non-null boolean attribute value.
func BoolValue(name string, val bool) AttributeValue {
	raw, _ := json.Marshal(val)
	return AttributeValue{Name: name, Type: TypeBool, b: val, raw: raw}
}

// IntValue returns a non-null integer attribute value.
func IntValue(name string, val int64) AttributeValue {
	raw, _ := json.Marshal(val)
	return AttributeValue{Name: name, Type: TypeInt, i: val, raw: raw}
}

// IsNull reports whether the attribute carried no value.
func (v AttributeValue) IsNull() bool { return v.null }

// AsString returns the string value, or "" when null.
func (v AttributeValue) AsString() string {
	if v.null {
		return ""
	}
	v.mustBe(TypeString)
	return v.str
}

// AsList returns the list value, or nil when null. A string value is
// returned as a singleton list; the registry serves single-valued text
// attributes that way and the contact collection relies on it.
func (v AttributeValue) AsList() []string {
	if v.null {
		return nil
	}
	if v.Type == TypeString {
		return []string{v.str}
	}
	v.mustBe(TypeList)
	return v.list
}

// AsMap returns the map value, or an empty map when null.
func (v AttributeValue) AsMap() map[string]string {
	if v.null {
		return map[string]string{}
	}
	v.mustBe(TypeMap)
	return v.mp
}

// AsBool returns the boolean value, or false when null.
func (v AttributeValue) AsBool() bool {
	if v.null {
		return false
	}
	v.mustBe(TypeBool)
	return v.b
}

// AsInt returns the integer value, or 0 when null.
func (v AttributeValue) AsInt() int64 {
	if v.null {
		return 0
	}
	v.mustBe(TypeInt)
	return v.i
}

func (v AttributeValue) mustBe(t AttributeType) {
	if v.Type != t {
		panic(fmt.Sprintf("attribute %s: accessed as type %d but holds type %d", v.Name, t, v.Type))
	}
}

// Equal reports whether two attribute values carry the same payload.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.null || o.null {
		return v.null == o.null
	}
	var a, b any
	if err := json.Unmarshal(v.raw, &a); err != nil {
		return false
	}
	if err := json.Unmarshal(o.raw, &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// String renders the raw payload, for logs and diff reports.
func (v AttributeValue) String() string {
	if v.null {
		return "null"
	}
	return string(v.raw)
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Attribute is a full registry attribute: the definition plus the current
// value. It round-trips through the registry wire JSON so that fetched
// attributes can be modified and written back with setAttributes.
type Attribute struct {
	ID                    int64           `json:"id"`
	FriendlyName          string          `json:"friendlyName"`
	Namespace             string          `json:"namespace"`
	Description           string          `json:"description"`
	Type                  string          `json:"type"`
	DisplayName           string          `json:"displayName"`
	Writable              bool            `json:"writable"`
	Unique                bool            `json:"unique"`
	Entity                string          `json:"entity"`
	BaseFriendlyName      string          `json:"baseFriendlyName"`
	FriendlyNameParameter string          `json:"friendlyNameParameter"`
	BeanName              string          `json:"beanName,omitempty"`
	Value                 json.RawMessage `json:"value"`
}

// URN returns the fully qualified attribute name the configuration refers to.
func (a *Attribute) URN() string {
	return a.Namespace + ":" + a.FriendlyName
}

// AttributeValue returns the typed view of the attribute's current value.
func (a *Attribute) AttributeValue() (AttributeValue, error) {
	return ParseAttributeValue(a.URN(), a.Type, a.Value)
}

// SetValue replaces the attribute's value, keeping the declared wire type.
func (a *Attribute) SetValue(val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("attribute %s: encode value: %w", a.URN(), err)
	}
	a.Value = raw
	return nil
}

// SortedSet returns a deduplicated, lexicographically sorted copy of vals.
// List-valued client fields are stored in this form so that repeated runs
// and diff reports are stable regardless of registry ordering.
func SortedSet(vals []string) []string {
	if len(vals) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ContainsString reports whether the sorted set holds val.
func ContainsString(set []string, val string) bool {
	i := sort.SearchStrings(set, val)
	return i < len(set) && set[i] == val
}

package domain

import (
	"encoding/json"
	"maps"
	"strconv"
)

// PageRequest identifies one page of a resource list.
type PageRequest struct {
	Page     int
	PageSize int
	// Filter names one of the resource's list filters, empty for resources
	// without filters.
	Filter string
}

// Fields is a set of resource field values keyed by their wire name.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil receiver yields an empty map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// Record is one backend-owned resource entity as decoded from the wire.
// Identity is the "id" member; the dashboard never generates ids.
type Record map[string]any

// ID returns the record identifier rendered as a string.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Page is the canonical list shape every list endpoint is normalized to.
type Page struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"totalCount"`
}

package domain

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Fields every resource treats as server-managed.
var serverManagedFields = []string{"id", "createdAt", "updatedAt"}

var pathPlaceholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resource describes one CRUD entity type exposed by the marketplace backend.
type Resource struct {
	Name  string
	Label string

	// Path is the collection path; item operations use Path + "/" + id.
	Path string
	// ListPath and CreatePath override Path for the list and create calls.
	// CreatePath may contain {field} placeholders filled from the payload.
	ListPath   string
	CreatePath string

	// ListKey names the array member of a list responseObject.
	ListKey string

	Required      []string
	FieldLabels   map[string]string
	ServerManaged []string
	Defaults      Fields

	// Filters are the disjoint subsets the list can show, the first one
	// being the default.
	Filters []Filter
	// Actions are record operations besides update and delete.
	Actions []Action
	// Detail reports whether the backend serves single records at ItemURL.
	Detail bool
}

// Filter is a named subset of a resource list, such as active or blocked
// clients. Query is added to every list request made under it.
type Filter struct {
	Name  string
	Label string
	Query map[string]string
}

// Action is a record operation such as blocking a client. Path may hold an
// {id} placeholder.
type Action struct {
	Name   string // verb used in error toasts, e.g. "block"
	Done   string // used in success toasts, e.g. "blocked"
	Method string
	Path   string
}

// URL returns the action path for the record with the given id.
func (a Action) URL(id string) string {
	return strings.ReplaceAll(a.Path, "{id}", url.PathEscape(id))
}

// ListURL returns the path used for list requests.
func (r Resource) ListURL() string {
	if r.ListPath != "" {
		return r.ListPath
	}
	return r.Path
}

// CreateURL returns the path used for create requests, with placeholders
// resolved from payload.
func (r Resource) CreateURL(payload Fields) (string, error) {
	if r.CreatePath == "" {
		return r.Path, nil
	}

	var missing string
	out := pathPlaceholder.ReplaceAllStringFunc(r.CreatePath, func(m string) string {
		field := m[1 : len(m)-1]
		v, ok := payload[field]
		s := strings.TrimSpace(fmt.Sprint(v))
		if !ok || v == nil || s == "" {
			if missing == "" {
				missing = field
			}
			return m
		}
		return url.PathEscape(s)
	})
	if missing != "" {
		return "", NewAppError(CodeValidation, r.FieldLabel(missing)+" is required", nil)
	}
	return out, nil
}

// ItemURL returns the path addressing the record with the given id.
func (r Resource) ItemURL(id string) string {
	return strings.TrimRight(r.Path, "/") + "/" + url.PathEscape(id)
}

// FieldLabel returns the human label of a field, falling back to the field name.
func (r Resource) FieldLabel(field string) string {
	if l, ok := r.FieldLabels[field]; ok && l != "" {
		return l
	}
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

// IsServerManaged reports whether field is owned by the backend and must not
// be copied into an editing draft.
func (r Resource) IsServerManaged(field string) bool {
	return slices.Contains(serverManagedFields, field) || slices.Contains(r.ServerManaged, field)
}

// EditableFields returns a shallow copy of rec without server-managed fields.
func (r Resource) EditableFields(rec Record) Fields {
	out := make(Fields, len(rec))
	for k, v := range rec {
		if r.IsServerManaged(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// MissingRequired returns the required fields that are absent or blank in draft,
// in declaration order.
func (r Resource) MissingRequired(draft Fields) []string {
	var missing []string
	for _, f := range r.Required {
		v, ok := draft[f]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// DefaultFilter returns the filter a new view starts on, empty when the
// resource has none.
func (r Resource) DefaultFilter() string {
	if len(r.Filters) == 0 {
		return ""
	}
	return r.Filters[0].Name
}

// HasFilter reports whether name selects a list of r. The empty name is
// only valid for resources without filters.
func (r Resource) HasFilter(name string) bool {
	if len(r.Filters) == 0 {
		return name == ""
	}
	return slices.ContainsFunc(r.Filters, func(f Filter) bool { return f.Name == name })
}

// FilterQuery returns the list query parameters of the named filter.
func (r Resource) FilterQuery(name string) map[string]string {
	for _, f := range r.Filters {
		if f.Name == name {
			return f.Query
		}
	}
	return nil
}

// Action returns the named record action.
func (r Resource) Action(name string) (Action, bool) {
	i := slices.IndexFunc(r.Actions, func(a Action) bool { return a.Name == name })
	if i < 0 {
		return Action{}, false
	}
	return r.Actions[i], true
}

// Action names taken by the built-in mutations.
var reservedActions = []string{"create", "update", "delete"}

func (r Resource) validate() error {
	seen := make(map[string]bool)
	for _, f := range r.Filters {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("resource %q: filter names must be unique and non-empty", r.Name)
		}
		seen[f.Name] = true
	}

	clear(seen)
	for _, a := range r.Actions {
		if a.Name == "" || seen[a.Name] || slices.Contains(reservedActions, a.Name) {
			return fmt.Errorf("resource %q: invalid or duplicate action name %q", r.Name, a.Name)
		}
		seen[a.Name] = true
		switch a.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return fmt.Errorf("resource %q: action %q has unsupported method %q", r.Name, a.Name, a.Method)
		}
		if a.Path == "" {
			return fmt.Errorf("resource %q: action %q has no path", r.Name, a.Name)
		}
	}
	return nil
}

package domain

import (
	"fmt"
	"net/http"
	"slices"
)

// Catalog is an ordered set of resources addressable by name.
type Catalog struct {
	order  []string
	byName map[string]Resource
}

// NewCatalog builds a catalog from resources. Names must be unique and non-empty.
func NewCatalog(resources ...Resource) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Resource, len(resources))}
	for i, r := range resources {
		if r.Name == "" {
			return nil, fmt.Errorf("resource at index %d has no name", i)
		}
		if r.Path == "" {
			return nil, fmt.Errorf("resource %q has no path", r.Name)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", r.Name)
		}
		c.byName[r.Name] = r
		c.order = append(c.order, r.Name)
	}
	return c, nil
}

// Lookup returns the resource with the given name.
func (c *Catalog) Lookup(name string) (Resource, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// All returns every resource in registration order.
func (c *Catalog) All() []Resource {
	out := make([]Resource, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byName[n])
	}
	return out
}

// Names returns the resource names in registration order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

// ResourceOverride replaces selected endpoint settings of a catalog resource.
// Empty fields keep the existing value.
type ResourceOverride struct {
	Path       string
	ListPath   string
	CreatePath string
	ListKey    string
	Required   []string
}

// Apply applies o to the named resource.
func (c *Catalog) Apply(name string, o ResourceOverride) error {
	r, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("unknown resource %q", name)
	}
	if o.Path != "" {
		r.Path = o.Path
	}
	if o.ListPath != "" {
		r.ListPath = o.ListPath
	}
	if o.CreatePath != "" {
		r.CreatePath = o.CreatePath
	}
	if o.ListKey != "" {
		r.ListKey = o.ListKey
	}
	if len(o.Required) > 0 {
		r.Required = slices.Clone(o.Required)
	}
	c.byName[name] = r
	return nil
}

// DefaultResources returns the marketplace resources managed by the dashboard.
func DefaultResources() []Resource {
	return []Resource{
		{
			Name: "brands", Label: "Brand", Path: "/car-brands", ListKey: "carBrends",
			Required:    []string{"carBrend"},
			FieldLabels: map[string]string{"carBrend": "Brand name"},
		},
		{
			Name: "models", Label: "Model", Path: "/models", ListKey: "models",
			Required:    []string{"modelName"},
			FieldLabels: map[string]string{"modelName": "Model name"},
		},
		{
			Name: "colors", Label: "Color", Path: "/car-colors", ListKey: "colors",
			Required:    []string{"color"},
			FieldLabels: map[string]string{"color": "Color name"},
		},
		{
			Name: "features", Label: "Feature", Path: "/features", ListKey: "features",
			Required: []string{"title"},
		},
		{
			Name: "banners", Label: "Banner", Path: "/banners", CreatePath: "/banners/{carId}", ListKey: "banners",
			Required:      []string{"title", "carId"},
			FieldLabels:   map[string]string{"carId": "Car", "choosenImage": "Image"},
			ServerManaged: []string{"car"},
			Defaults:      Fields{"active": true},
		},
		{
			Name: "templates", Label: "Template", Path: "/sms-templates", ListKey: "templates",
			Required: []string{"title", "content"},
		},
		{
			Name: "requests", Label: "Request", Path: "/requests", ListKey: "requests",
			Required:      []string{"content", "type"},
			ServerManaged: []string{"user"},
			Defaults:      Fields{"type": "DEMAND"},
		},
		{
			Name: "clients", Label: "Client", Path: "/users", ListKey: "users",
			Required:      []string{"phoneNumber"},
			FieldLabels:   map[string]string{"phoneNumber": "Phone number"},
			ServerManaged: []string{"verificationCode", "isVerified"},
			Filters: []Filter{
				{Name: "active", Label: "Active", Query: map[string]string{"status": "active"}},
				{Name: "blocked", Label: "Blocked", Query: map[string]string{"status": "blocked"}},
			},
			Actions: []Action{
				{Name: "block", Done: "blocked", Method: http.MethodPost, Path: "/users/admin/block/{id}"},
				{Name: "unblock", Done: "unblocked", Method: http.MethodDelete, Path: "/users/admin/block/{id}"},
			},
			Detail: true,
		},
		{
			Name: "rentals", Label: "Rental company", Path: "/brends", ListPath: "/brends/all", CreatePath: "/brends/new", ListKey: "brends",
			Required: []string{"brendName", "ownerNumber", "address", "password"},
			FieldLabels: map[string]string{
				"brendName":   "Company name",
				"ownerNumber": "Owner number",
			},
			ServerManaged: []string{"userId", "ratings", "averageRating"},
		},
	}
}

// DefaultCatalog returns a catalog of DefaultResources.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultResources()...)
	if err != nil {
		panic("domain.DefaultCatalog: " + err.Error())
	}
	return c
}

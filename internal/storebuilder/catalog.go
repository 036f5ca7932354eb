// Package storebuilder keeps the storefront layout a user assembles from a
// palette of components, and reports layout size as udyam module progress
// when the layout is saved.
package storebuilder

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/digitalmira/internal/logging"
	"gopkg.in/yaml.v3"
)

//go:embed components.yaml
var componentsYAML []byte

// Component is a palette entry.
type Component struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Icon string `yaml:"icon" json:"icon"`
	Type string `yaml:"type" json:"type"`
}

type catalogFile struct {
	Components []Component `yaml:"components"`
}

// Catalog is an ordered, read-only set of components.
type Catalog struct {
	components []Component
	byID       map[string]int
}

func defaultComponents() []Component {
	return []Component{
		{ID: "header", Name: "Store Header", Icon: "fa-heading", Type: "layout"},
		{ID: "products", Name: "Product Grid", Icon: "fa-th", Type: "content"},
		{ID: "footer", Name: "Store Footer", Icon: "fa-shoe-prints", Type: "layout"},
	}
}

// LoadCatalog returns the embedded palette.
func LoadCatalog(ctx context.Context, logger logging.Logger) *Catalog {
	return ParseCatalog(ctx, componentsYAML, logger)
}

// ParseCatalog decodes a YAML palette. Malformed or empty input falls back to
// the built-in header/products/footer set.
func ParseCatalog(ctx context.Context, data []byte, logger logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Nop()
	}

	components, err := parseComponents(data)
	if err != nil {
		logger.Warn(ctx, "using default components", "error", err)
		components = defaultComponents()
	}
	return newCatalog(components)
}

func parseComponents(data []byte) ([]Component, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}

	var out []Component
	seen := make(map[string]struct{}, len(f.Components))
	for _, c := range f.Components {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, errors.New("no components defined")
	}
	return out, nil
}

func newCatalog(components []Component) *Catalog {
	byID := make(map[string]int, len(components))
	for i, c := range components {
		byID[c.ID] = i
	}
	return &Catalog{components: components, byID: byID}
}

// Components returns the palette in declaration order.
func (c *Catalog) Components() []Component {
	return append([]Component(nil), c.components...)
}

func (c *Catalog) Lookup(id string) (Component, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Component{}, false
	}
	return c.components[i], true
}

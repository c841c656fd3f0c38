// Package wizard assembles the wizards this portal serves.
package wizard

import (
	"fmt"

	"taxportal/internal/claims"
	"taxportal/internal/returns/lbtt"
	"taxportal/internal/returns/slft"
	"taxportal/internal/wizard/flow"
)

// Catalog lists every wizard the portal knows about.
func Catalog() []flow.Sequence {
	return []flow.Sequence{
		lbtt.Flow(),
		slft.Flow(),
		claims.Flow(),
	}
}

// NewRegistry registers the catalog entries for which enabled returns true.
// A nil enabled registers everything.
func NewRegistry(enabled func(name string) bool) (*flow.Registry, error) {
	registry := flow.NewRegistry()
	for _, seq := range Catalog() {
		if enabled != nil && !enabled(seq.Name()) {
			continue
		}
		if err := registry.Register(seq); err != nil {
			return nil, fmt.Errorf("register wizards: %w", err)
		}
	}
	return registry, nil
}

package cache

import (
	"context"

	"github.com/LeJamon/goXRPLdig/internal/dig"
)

// Passthrough presents the cache surface without retaining anything, for
// deployments that disable caching. Every read goes straight to the source.
type Passthrough struct {
	source Source
}

// NewPassthrough wraps source in the cache surface.
func NewPassthrough(source Source) *Passthrough {
	return &Passthrough{source: source}
}

func (p *Passthrough) GetOrFetch(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error) {
	return p.source.Aggregate(ctx, address, networkID, facets...)
}

func (p *Passthrough) Refresh(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error) {
	return p.source.Aggregate(ctx, address, networkID, facets...)
}

// Invalidate is a no-op; there is nothing retained to drop.
func (p *Passthrough) Invalidate(address, networkID string) {}

func (p *Passthrough) Close() error { return nil }

package weather

import (
	"context"
)

// Provider abstracts the external forecast service. Implementations make
// exactly one outbound request per Fetch call and do not retry; recovery
// from failure is the cache's fallback path.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, coord Coordinate, purpose Purpose) (Report, error)
}

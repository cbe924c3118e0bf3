package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/legislature-crawler/internal/archive"
)

// Fetcher fetches an API URL and classifies the outcome.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// TextExtractor turns a bill document's HTML into normalized plain text.
type TextExtractor interface {
	Extract(html string) string
}

// IdentityResolver maps a session-scoped profile onto a canonical legislator id.
type IdentityResolver interface {
	Resolve(profile LegislatorProfile, historical []HistoricalLegislator) Resolution
}

// Archive persists records under stable keys. Save returns the digest of
// the written blob.
type Archive interface {
	Has(ctx context.Context, key archive.Key) (bool, error)
	Save(ctx context.Context, key archive.Key, v any) (string, error)
}

// Publisher pushes "entity archived" events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

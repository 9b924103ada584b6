package links

import "context"

// Store is durable storage for links keyed by ID with a unique code index.
//
// Implementations must make Insert an atomic insert-if-code-absent and
// IncrementVisits an atomic in-place increment.
type Store interface {
	// Insert stores link. It fails with ErrDuplicateCode if any record already
	// uses link.Code.
	Insert(ctx context.Context, link *Link) error

	// FindByCode returns the record regardless of status, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Link, error)

	// FindByID returns the record regardless of status, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Link, error)

	// UpdateTarget changes the target of an active record. It fails with
	// ErrNotFound or ErrInvalidState.
	UpdateTarget(ctx context.Context, id, target string) (*Link, error)

	// IncrementVisits adds one visit to an active record and returns the
	// post-increment record. It fails with ErrNotFound or ErrInvalidState.
	IncrementVisits(ctx context.Context, id string) (*Link, error)

	// Retire marks the record retired. Retiring a retired record is a no-op.
	Retire(ctx context.Context, id string) (*Link, error)

	// ListActive returns active records, newest first, and the total number of
	// active records.
	ListActive(ctx context.Context, page Page) ([]*Link, int64, error)
}

// Package blob holds the image-hosting boundary: new frames must be stored
// before the occupancy pipeline proceeds, while deleting a superseded frame
// is best-effort only.
package blob

import "context"

// Store is the image-hosting capability consumed by the pipeline.
type Store interface {
	// Put stores the image and returns its public URL. A Put failure aborts
	// the caller's pipeline.
	Put(ctx context.Context, data []byte) (string, error)
	// Delete removes a previously stored image by its URL. Failures are the
	// caller's to log and discard; an orphaned blob is an acceptable cost.
	Delete(ctx context.Context, url string) error
}

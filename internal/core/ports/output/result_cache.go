package ports

import "context"

// ResultCache keeps serialized prediction results keyed by request fingerprint
type ResultCache interface {
	// Get decodes a cached value into dst, found is false on a miss
	Get(ctx context.Context, key string, dst any) (found bool, err error)

	Set(ctx context.Context, key string, value any) error
}

package domain

import "context"

// Predictor wraps an opaque trained classifier.
type Predictor interface {
	// FeatureNames is the exact ordered column contract of Predict.
	FeatureNames() []string
	Predict(ctx context.Context, m FeatureMatrix) ([]int, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// GetMany fills dst[i] for every hit on keys[i] in one round trip.
	GetMany(ctx context.Context, keys []string, dst []any) ([]bool, error)
	// SetMany stores every entry with the same ttl in one round trip.
	SetMany(ctx context.Context, entries map[string]any, ttlSec int) error
}

type CleanListingRepository interface {
	UpsertCleanListings(ctx context.Context, ls []CleanListing) error
	CountCleanListings(ctx context.Context) (int, error)
}

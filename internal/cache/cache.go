package cache

import (
	"context"
	"time"

	"tiemao/storefront/internal/domain"
)

// VariantCache sits in front of the repository for per-product variant
// reads, the hottest lookup in the storefront.
type VariantCache interface {
	Get(ctx context.Context, productID string) ([]domain.Variant, bool, error)
	Set(ctx context.Context, productID string, variants []domain.Variant, ttl time.Duration) error
}

type NoopVariantCache struct{}

func (NoopVariantCache) Get(_ context.Context, _ string) ([]domain.Variant, bool, error) {
	return nil, false, nil
}

func (NoopVariantCache) Set(_ context.Context, _ string, _ []domain.Variant, _ time.Duration) error {
	return nil
}

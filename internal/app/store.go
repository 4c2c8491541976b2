package app

import (
	"context"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

// SegmentStore is the persistence surface the services need. Raw and
// published lists are stored separately; every write is atomic so
// readers never observe a half-written list. WithUnitLock serializes a
// whole load-modify-save cycle for one unit, including across processes
// for the file-backed implementation.
type SegmentStore interface {
	Load(ctx context.Context, unit string) ([]domain.Segment, error)
	Save(ctx context.Context, unit string, segs []domain.Segment) error
	LoadPublished(ctx context.Context, unit string) ([]domain.Segment, error)
	SavePublished(ctx context.Context, unit string, segs []domain.Segment) error
	Units(ctx context.Context) ([]string, error)
	WithUnitLock(ctx context.Context, unit string, fn func(ctx context.Context) error) error
}

package promotion

import "context"

// Store persists Promotion Events.
type Store interface {
	Append(ctx context.Context, e Event) (Event, error)
	LastPromotion(ctx context.Context, family string) (Event, bool, error)
}

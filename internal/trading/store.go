package trading

import "context"

// Store persists Trading Signals and Positions.
type Store interface {
	SaveSignal(ctx context.Context, s Signal) (Signal, error)
	UpdateSignal(ctx context.Context, s Signal) error

	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
	SavePosition(ctx context.Context, p Position) (Position, error)
}

package contracts

import (
	"context"
	"time"
)

// =============================================================================
// Collaborator interfaces (external I/O boundary)
// ⭐ SSOT: 외부 연동 인터페이스는 여기서만 정의
// =============================================================================

// Broker places orders and reports account state.
// Partial fills are reported with FillPartial, never as FillFilled.
// An order still working at the broker is reported with FillPending and must be
// settled through GetOrder before another order is sent for the same intent.
type Broker interface {
	PlaceOrder(ctx context.Context, intent OrderIntent) (*OrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetPositions(ctx context.Context) ([]BrokerPosition, error)
	GetAccountCash(ctx context.Context) (float64, error)
}

// InstrumentSource lists the instruments the broker can trade
type InstrumentSource interface {
	ListInstruments(ctx context.Context) ([]Instrument, error)
}

// MarketData retrieves quotes, history and profiles.
// Rate limits surface as ErrRateLimited (retryable).
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetHistory(ctx context.Context, symbol string, window HistoryWindow) ([]Bar, error)
	GetProfile(ctx context.Context, symbol string) (*Profile, error)
}

// EarningsCalendar lists scheduled earnings reports in [from, to]
type EarningsCalendar interface {
	EarningsBetween(ctx context.Context, from, to time.Time) ([]EarningsEvent, error)
}

// NewsSource fetches recent headlines for a symbol
type NewsSource interface {
	Headlines(ctx context.Context, symbol string) ([]Headline, error)
}

// UniverseStore persists weekly universes.
// SaveUniverse on a stored frozen week fails with ErrImmutableState and changes nothing.
type UniverseStore interface {
	SaveUniverse(ctx context.Context, u *WeeklyUniverse) error
	LoadUniverse(ctx context.Context, week WeekKey) (*WeeklyUniverse, error)
}

// PositionStore persists position state transitions
type PositionStore interface {
	SavePosition(ctx context.Context, p *Position) error
	LoadOpenPositions(ctx context.Context) ([]*Position, error)
	LoadClosedSince(ctx context.Context, since time.Time) ([]*Position, error)
}

// Storage is the combined persistence boundary
type Storage interface {
	UniverseStore
	PositionStore
}

// Notifier is fire-and-forget; failures must never abort a trading action
type Notifier interface {
	Notify(ctx context.Context, category NotifyCategory, message string) error
}

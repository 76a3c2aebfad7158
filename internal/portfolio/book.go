package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// =============================================================================
// Position Book
// ⭐ SSOT: 포지션 상태 전이는 여기서만 (실행/청산/뉴스 모니터 공용)
// =============================================================================

// ReserveReason explains why a slot could not be reserved
type ReserveReason string

const (
	ReasonCapReached        ReserveReason = "cap-reached"
	ReasonAlreadyOpen       ReserveReason = "already-open"
	ReasonPendingClose      ReserveReason = "pending-close"
	ReasonClosedThisSession ReserveReason = "closed-this-session"
)

// ReserveError is returned when a strategy slot is not available
type ReserveError struct {
	Strategy contracts.StrategyID
	Symbol   string
	Reason   ReserveReason
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("reserve %s/%s: %s", e.Strategy, e.Symbol, e.Reason)
}

// Reservation holds one strategy slot until Commit or Release
type Reservation struct {
	Strategy contracts.StrategyID
	Symbol   string
	done     bool
}

// PendingEntry is a buy order still working at the broker.
// 슬롯은 주문이 확정될 때까지 예약 상태로 유지
type PendingEntry struct {
	OrderID  string
	Position contracts.Position // 체결 전 템플릿 (수량/가격은 SettleEntry 에서 확정)
	HeldAt   time.Time

	res *Reservation
}

const closedHistoryLimit = 200

// Book is the shared position table
type Book struct {
	store  contracts.PositionStore
	logger *logger.Logger
	caps   map[contracts.StrategyID]int

	mu          sync.Mutex
	positions   map[string]*contracts.Position // id → active position
	open        map[contracts.StrategyID]int
	reserved    map[contracts.StrategyID]int
	inflight    map[string]bool // strategy|symbol
	closedToday map[string]bool // symbol
	realized    float64         // 세션 실현 손익
	equity      float64         // 세션 시작 시점 평가금액 (일일 손실 한도 기준)
	closed      []contracts.Position
	entries     map[string]*PendingEntry // order id → working buy

	symLocks sync.Map // symbol → *sync.Mutex
}

// NewBook creates a position book with per-strategy caps
func NewBook(store contracts.PositionStore, caps map[contracts.StrategyID]int, log *logger.Logger) *Book {
	c := make(map[contracts.StrategyID]int, len(caps))
	for k, v := range caps {
		c[k] = v
	}
	return &Book{
		store:       store,
		logger:      log,
		caps:        c,
		positions:   make(map[string]*contracts.Position),
		open:        make(map[contracts.StrategyID]int),
		reserved:    make(map[contracts.StrategyID]int),
		inflight:    make(map[string]bool),
		closedToday: make(map[string]bool),
		entries:     make(map[string]*PendingEntry),
	}
}

// WithSymbol runs fn while holding the symbol's lock.
// 같은 종목의 진입/청산 결정은 직렬화됨
func (b *Book) WithSymbol(symbol string, fn func() error) error {
	v, _ := b.symLocks.LoadOrStore(symbol, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	defer m.Unlock()
	return fn()
}

func key(strategy contracts.StrategyID, symbol string) string {
	return string(strategy) + "|" + symbol
}

// Reserve atomically claims a slot under the strategy cap
func (b *Book) Reserve(strategy contracts.StrategyID, symbol string) (*Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fail := func(r ReserveReason) error {
		return &ReserveError{Strategy: strategy, Symbol: symbol, Reason: r}
	}

	if b.closedToday[symbol] {
		return nil, fail(ReasonClosedThisSession)
	}
	for _, p := range b.positions {
		if p.Symbol != symbol {
			continue
		}
		if p.Status == contracts.PositionPendingClose {
			return nil, fail(ReasonPendingClose)
		}
		if p.Strategy == strategy {
			return nil, fail(ReasonAlreadyOpen)
		}
	}
	if b.inflight[key(strategy, symbol)] {
		return nil, fail(ReasonAlreadyOpen)
	}
	if b.open[strategy]+b.reserved[strategy] >= b.caps[strategy] {
		return nil, fail(ReasonCapReached)
	}

	b.reserved[strategy]++
	b.inflight[key(strategy, symbol)] = true
	return &Reservation{Strategy: strategy, Symbol: symbol}, nil
}

// Release returns an unused reservation
func (b *Book) Release(r *Reservation) {
	if r == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	b.reserved[r.Strategy]--
	delete(b.inflight, key(r.Strategy, r.Symbol))
}

// Commit turns a reservation into an OPEN position and persists it
func (b *Book) Commit(ctx context.Context, r *Reservation, pos *contracts.Position) error {
	b.mu.Lock()
	if r.done {
		b.mu.Unlock()
		return fmt.Errorf("reservation %s/%s already settled", r.Strategy, r.Symbol)
	}
	r.done = true
	b.reserved[r.Strategy]--
	delete(b.inflight, key(r.Strategy, r.Symbol))

	pos.Status = contracts.PositionOpen
	if pos.HighWaterMark < pos.EntryPrice {
		pos.HighWaterMark = pos.EntryPrice
	}
	b.positions[pos.ID] = pos
	b.open[pos.Strategy]++
	snapshot := *pos
	b.mu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"strategy":    pos.Strategy,
		"entry_price": pos.EntryPrice,
		"quantity":    pos.Quantity,
		"status":      pos.Status,
	}).Info("Position opened")

	return b.persist(ctx, &snapshot)
}

// HoldEntry keeps a reservation alive while the buy order is still working
func (b *Book) HoldEntry(r *Reservation, orderID string, template contracts.Position, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.done {
		return fmt.Errorf("reservation %s/%s already settled", r.Strategy, r.Symbol)
	}
	if _, exists := b.entries[orderID]; exists {
		return fmt.Errorf("order %s already held", orderID)
	}
	b.entries[orderID] = &PendingEntry{OrderID: orderID, Position: template, HeldAt: now, res: r}

	b.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"symbol":   r.Symbol,
		"strategy": r.Strategy,
	}).Warn("Entry order still working, slot held")
	return nil
}

// PendingEntries returns working buy orders, oldest first
func (b *Book) PendingEntries() []PendingEntry {
	b.mu.Lock()
	out := make([]PendingEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, PendingEntry{OrderID: e.OrderID, Position: e.Position, HeldAt: e.HeldAt})
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].HeldAt.Equal(out[j].HeldAt) {
			return out[i].HeldAt.Before(out[j].HeldAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// SettleEntry resolves a held entry once its order is terminal.
// filledQty > 0 → OPEN position (opened=true), 0 → slot released.
func (b *Book) SettleEntry(ctx context.Context, orderID string, filledQty, price float64, now time.Time) (contracts.Position, bool, error) {
	b.mu.Lock()
	e, ok := b.entries[orderID]
	if ok {
		delete(b.entries, orderID)
	}
	b.mu.Unlock()
	if !ok {
		return contracts.Position{}, false, fmt.Errorf("entry order %s: %w", orderID, contracts.ErrNotFound)
	}

	if filledQty <= 0 {
		b.Release(e.res)
		b.logger.WithFields(map[string]interface{}{
			"order_id": orderID,
			"symbol":   e.Position.Symbol,
		}).Info("Entry order ended without fill, slot released")
		return e.Position, false, nil
	}

	pos := e.Position
	if price > 0 {
		pos.EntryPrice = price
		pos.HighWaterMark = price
	}
	pos.Quantity = filledQty
	pos.UpdatedAt = now
	err := b.Commit(ctx, e.res, &pos)
	return pos, true, err
}

// SetCloseOrder records (or clears with "") the close order working at the broker
func (b *Book) SetCloseOrder(ctx context.Context, id, orderID string, now time.Time) (contracts.Position, error) {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok {
		b.mu.Unlock()
		return contracts.Position{}, fmt.Errorf("position %s: %w", id, contracts.ErrNotFound)
	}
	p.CloseOrderID = orderID
	p.UpdatedAt = now
	snapshot := *p
	b.mu.Unlock()

	return snapshot, b.persist(ctx, &snapshot)
}

// BeginClose moves OPEN → PENDING_CLOSE. 이미 PENDING_CLOSE 이면 changed=false
func (b *Book) BeginClose(ctx context.Context, id string, reason contracts.ExitReason, detail string, now time.Time) (contracts.Position, bool, error) {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok {
		b.mu.Unlock()
		return contracts.Position{}, false, fmt.Errorf("position %s: %w", id, contracts.ErrNotFound)
	}
	if p.Status != contracts.PositionOpen {
		snapshot := *p
		b.mu.Unlock()
		return snapshot, false, nil
	}
	p.Status = contracts.PositionPendingClose
	p.InvalidationReason = reason
	p.InvalidationDetail = detail
	p.UpdatedAt = now
	snapshot := *p
	b.mu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"position_id": id,
		"symbol":      snapshot.Symbol,
		"reason":      reason,
		"from":        contracts.PositionOpen,
		"to":          contracts.PositionPendingClose,
	}).Info("Position invalidated")

	return snapshot, true, b.persist(ctx, &snapshot)
}

// ConfirmClose moves PENDING_CLOSE → CLOSED at the fill price and archives it
func (b *Book) ConfirmClose(ctx context.Context, id string, price float64, now time.Time) (contracts.Position, error) {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok {
		b.mu.Unlock()
		return contracts.Position{}, fmt.Errorf("position %s: %w", id, contracts.ErrNotFound)
	}
	if p.Status != contracts.PositionPendingClose {
		b.mu.Unlock()
		return *p, fmt.Errorf("position %s: close requires %s, got %s", id, contracts.PositionPendingClose, p.Status)
	}
	pnl := (price - p.EntryPrice) * p.Quantity
	b.realized += pnl
	p.RealizedPnL += pnl
	p.Status = contracts.PositionClosed
	p.ExitPrice = price
	p.CloseOrderID = ""
	closedAt := now
	p.ClosedAt = &closedAt
	p.UpdatedAt = now

	delete(b.positions, id)
	b.open[p.Strategy]--
	b.closedToday[p.Symbol] = true
	b.closed = append(b.closed, *p)
	if len(b.closed) > closedHistoryLimit {
		b.closed = b.closed[len(b.closed)-closedHistoryLimit:]
	}
	snapshot := *p
	b.mu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"position_id": id,
		"symbol":      snapshot.Symbol,
		"exit_price":  price,
		"pnl_pct":     snapshot.PnLPct(price),
		"from":        contracts.PositionPendingClose,
		"to":          contracts.PositionClosed,
	}).Info("Position closed")

	return snapshot, b.persist(ctx, &snapshot)
}

// ApplyPartialClose reduces a PENDING_CLOSE position by the sold quantity
func (b *Book) ApplyPartialClose(ctx context.Context, id string, soldQty, price float64, now time.Time) (contracts.Position, error) {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok {
		b.mu.Unlock()
		return contracts.Position{}, fmt.Errorf("position %s: %w", id, contracts.ErrNotFound)
	}
	if soldQty > p.Quantity {
		soldQty = p.Quantity
	}
	pnl := (price - p.EntryPrice) * soldQty
	b.realized += pnl
	p.RealizedPnL += pnl
	p.Quantity -= soldQty
	p.UpdatedAt = now
	snapshot := *p
	b.mu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"position_id": id,
		"symbol":      snapshot.Symbol,
		"sold":        soldQty,
		"remaining":   snapshot.Quantity,
	}).Warn("Partial close, position stays pending")

	return snapshot, b.persist(ctx, &snapshot)
}

// ObservePrice raises the high-water mark (never lowers it).
// 새 고점은 저장소에 반영해 재시작 후에도 유지
func (b *Book) ObservePrice(ctx context.Context, id string, price float64) (contracts.Position, bool) {
	b.mu.Lock()
	p, ok := b.positions[id]
	if !ok {
		b.mu.Unlock()
		return contracts.Position{}, false
	}
	raised := price > p.HighWaterMark
	if raised {
		p.HighWaterMark = price
	}
	snapshot := *p
	b.mu.Unlock()

	if raised {
		_ = b.persist(ctx, &snapshot)
	}
	return snapshot, true
}

// Get returns a copy of an active position
func (b *Book) Get(id string) (contracts.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return contracts.Position{}, false
	}
	return *p, true
}

// Active returns copies of OPEN and PENDING_CLOSE positions ordered by entry time
func (b *Book) Active() []contracts.Position {
	b.mu.Lock()
	out := make([]contracts.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OpenSymbols lists symbols with at least one OPEN position
func (b *Book) OpenSymbols() []string {
	b.mu.Lock()
	seen := make(map[string]bool)
	for _, p := range b.positions {
		if p.Status == contracts.PositionOpen {
			seen[p.Symbol] = true
		}
	}
	b.mu.Unlock()

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OpenCount returns active positions for a strategy
func (b *Book) OpenCount(strategy contracts.StrategyID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open[strategy]
}

// Closed returns recently closed positions (oldest first)
func (b *Book) Closed() []contracts.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.Position, len(b.closed))
	copy(out, b.closed)
	return out
}

// RealizedPnL returns the realized P&L of the current session
func (b *Book) RealizedPnL() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realized
}

// SetSessionEquity records the account value at the start of the session
func (b *Book) SetSessionEquity(equity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.equity = equity
}

// SessionEquity returns the session start equity (0 = not snapshotted yet)
func (b *Book) SessionEquity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equity
}

// ResetSession clears per-session state (closed-this-session, realized P&L, equity)
func (b *Book) ResetSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closedToday = make(map[string]bool)
	b.realized = 0
	b.equity = 0
	b.logger.Info("Position book session reset")
}

// Restore loads active positions and the positions closed since sessionStart (startup).
// 당일 청산 종목 재진입 차단과 세션 실현 손익도 복원
func (b *Book) Restore(ctx context.Context, sessionStart time.Time) (int, error) {
	positions, err := b.store.LoadOpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore positions: %w", err)
	}
	closed, err := b.store.LoadClosedSince(ctx, sessionStart)
	if err != nil {
		return 0, fmt.Errorf("restore closed positions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range positions {
		if !p.IsActive() {
			continue
		}
		if _, exists := b.positions[p.ID]; exists {
			continue
		}
		if p.HighWaterMark < p.EntryPrice {
			p.HighWaterMark = p.EntryPrice
		}
		b.positions[p.ID] = p
		b.open[p.Strategy]++
	}
	for _, p := range closed {
		if p.Status != contracts.PositionClosed {
			continue
		}
		b.closedToday[p.Symbol] = true
		b.realized += p.RealizedPnL
		b.closed = append(b.closed, *p)
	}
	if len(b.closed) > closedHistoryLimit {
		b.closed = b.closed[len(b.closed)-closedHistoryLimit:]
	}

	b.logger.WithFields(map[string]interface{}{
		"active":        len(b.positions),
		"closed":        len(closed),
		"session_start": sessionStart,
		"realized":      b.realized,
	}).Info("Position book restored")
	return len(b.positions), nil
}

func (b *Book) persist(ctx context.Context, p *contracts.Position) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.SavePosition(ctx, p); err != nil {
		b.logger.WithError(err).WithField("position_id", p.ID).Error("Failed to persist position")
		return fmt.Errorf("persist position %s: %w", p.ID, err)
	}
	return nil
}

package contracts

import "time"

// =============================================================================
// Position & Invalidation
// ⭐ SSOT: 포지션 상태/청산 사유는 여기서만 정의
// =============================================================================

// PositionStatus 포지션 상태
type PositionStatus string

const (
	PositionOpen         PositionStatus = "OPEN"
	PositionPendingClose PositionStatus = "PENDING_CLOSE"
	PositionClosed       PositionStatus = "CLOSED"
)

// ExitReason is the recorded invalidation reason
type ExitReason string

const (
	ExitReasonStopLoss          ExitReason = "stop-loss"
	ExitReasonTrailingStop      ExitReason = "trailing-stop"
	ExitReasonMaxHold           ExitReason = "max-hold"
	ExitReasonNewsInvalidation  ExitReason = "news-invalidation"
	ExitReasonSessionForceClose ExitReason = "session-force-close"
)

// Position is a live holding opened from a frozen signal
type Position struct {
	ID                 string         `json:"id"`
	Symbol             string         `json:"symbol"`
	Strategy           StrategyID     `json:"strategy"`
	Score              int            `json:"score"`
	EntryPrice         float64        `json:"entry_price"`
	EntryTime          time.Time      `json:"entry_time"`
	Quantity           float64        `json:"quantity"`
	HighWaterMark      float64        `json:"high_water_mark"`
	Status             PositionStatus `json:"status"`
	InvalidationReason ExitReason     `json:"invalidation_reason,omitempty"`
	InvalidationDetail string         `json:"invalidation_detail,omitempty"`
	Exit               ExitParams     `json:"exit"`
	ExitPrice          float64        `json:"exit_price,omitempty"`
	RealizedPnL        float64        `json:"realized_pnl,omitempty"`   // 부분 청산 포함 누적
	CloseOrderID       string         `json:"close_order_id,omitempty"` // 브로커에서 working 중인 청산 주문
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsActive reports OPEN or PENDING_CLOSE
func (p *Position) IsActive() bool {
	return p.Status == PositionOpen || p.Status == PositionPendingClose
}

// PnLPct returns unrealized/realized return vs entry in percent
func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// ExitEvent is emitted when the invalidation engine acts on a position
type ExitEvent struct {
	PositionID  string         `json:"position_id"`
	Symbol      string         `json:"symbol"`
	Strategy    StrategyID     `json:"strategy"`
	Reason      ExitReason     `json:"reason"`
	Detail      string         `json:"detail"`
	Price       float64        `json:"price"`
	EntryPrice  float64        `json:"entry_price"`
	PnLPct      float64        `json:"pnl_pct"`
	Status      PositionStatus `json:"status"`
	TriggeredAt time.Time      `json:"triggered_at"`
}

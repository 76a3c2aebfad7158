package contracts

import "time"

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// FillStatus distinguishes full fills from partial fills and rejections
type FillStatus string

const (
	FillFilled   FillStatus = "FILLED"
	FillPartial  FillStatus = "PARTIAL"
	FillRejected FillStatus = "REJECTED"
	FillPending  FillStatus = "PENDING" // 브로커에서 아직 working (취소 실패 포함)
)

// OrderIntent is what the core asks the broker to do.
// Buys are sized by Notional, sells by Quantity.
type OrderIntent struct {
	ClientOrderID string     `json:"client_order_id"`
	Symbol        string     `json:"symbol"`
	Strategy      StrategyID `json:"strategy"`
	Side          OrderSide  `json:"side"`
	Notional      float64    `json:"notional,omitempty"`
	Quantity      float64    `json:"quantity,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderResult is the broker's answer to an OrderIntent
type OrderResult struct {
	OrderID      string     `json:"order_id"`
	Status       FillStatus `json:"status"`
	FilledQty    float64    `json:"filled_qty"`
	RequestedQty float64    `json:"requested_qty"`
	AvgPrice     float64    `json:"avg_price"`
	Message      string     `json:"message,omitempty"`
}

// IsFilled checks for a complete fill
func (r *OrderResult) IsFilled() bool {
	return r.Status == FillFilled
}

// IsPartial checks for a partial fill
func (r *OrderResult) IsPartial() bool {
	return r.Status == FillPartial
}

// IsPending checks for an order that may still fill
func (r *OrderResult) IsPending() bool {
	return r.Status == FillPending
}

// BrokerPosition is a holding as reported by the broker
type BrokerPosition struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	CurrentPrice float64 `json:"current_price"`
}

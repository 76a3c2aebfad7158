package broker

import "github.com/wonny/aegis-swing/internal/contracts"

// Order statuses reported by the REST API
const (
	statusNew       = "NEW"
	statusFilled    = "FILLED"
	statusPartial   = "PARTIALLY_FILLED"
	statusRejected  = "REJECTED"
	statusCancelled = "CANCELLED"
)

type orderRequest struct {
	ClientOrderID string  `json:"clientOrderId"`
	Ticker        string  `json:"ticker"`
	Side          string  `json:"side"`
	Notional      float64 `json:"notional,omitempty"`
	Quantity      float64 `json:"quantity,omitempty"`
	Type          string  `json:"type"`
}

type orderResponse struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"clientOrderId"`
	Status         string  `json:"status"`
	Quantity       float64 `json:"quantity"`
	FilledQuantity float64 `json:"filledQuantity"`
	AveragePrice   float64 `json:"averagePrice"`
	Message        string  `json:"message,omitempty"`
}

// terminal reports whether the order will not change anymore
func (o orderResponse) terminal() bool {
	switch o.Status {
	case statusFilled, statusRejected, statusCancelled:
		return true
	}
	return false
}

func (o orderResponse) toResult() *contracts.OrderResult {
	r := &contracts.OrderResult{
		OrderID:      o.ID,
		FilledQty:    o.FilledQuantity,
		RequestedQty: o.Quantity,
		AvgPrice:     o.AveragePrice,
		Message:      o.Message,
	}
	switch {
	case o.Status == statusFilled:
		r.Status = contracts.FillFilled
	case !o.terminal():
		// 아직 브로커에서 working 중인 주문
		r.Status = contracts.FillPending
	case o.FilledQuantity > 0:
		// 미체결 잔량이 남은 주문 (취소 포함) 은 부분 체결
		r.Status = contracts.FillPartial
	default:
		r.Status = contracts.FillRejected
	}
	return r
}

type positionResponse struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"averagePrice"`
	CurrentPrice float64 `json:"currentPrice"`
}

type cashResponse struct {
	Free    float64 `json:"free"`
	Total   float64 `json:"total"`
	Blocked float64 `json:"blocked"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package broker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// PaperBroker fills market orders at the live quote in memory
// ⭐ 실제 운영에서는 Client 사용
type PaperBroker struct {
	quotes contracts.MarketData
	logger *logger.Logger

	mu           sync.Mutex
	cash         float64
	holdings     map[string]*contracts.BrokerPosition
	partialRatio float64 // 0 = 항상 전량 체결
	orders       map[string]contracts.OrderResult
}

// NewPaperBroker creates a paper account with starting cash
func NewPaperBroker(quotes contracts.MarketData, cash float64, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		quotes:   quotes,
		logger:   log.WithField("module", "paper-broker"),
		cash:     cash,
		holdings: make(map[string]*contracts.BrokerPosition),
		orders:   make(map[string]contracts.OrderResult),
	}
}

// SetPartialRatio makes every order fill only ratio of the requested quantity
func (b *PaperBroker) SetPartialRatio(ratio float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partialRatio = ratio
}

// PlaceOrder fills at the current quote price
func (b *PaperBroker) PlaceOrder(ctx context.Context, intent contracts.OrderIntent) (*contracts.OrderResult, error) {
	q, err := b.quotes.GetQuote(ctx, intent.Symbol)
	if err != nil {
		return nil, err
	}
	if q.Price <= 0 {
		return nil, contracts.DataUnavailable("paper quote "+intent.Symbol, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result := &contracts.OrderResult{OrderID: "PAPER-" + uuid.NewString(), AvgPrice: q.Price}
	defer func() { b.orders[result.OrderID] = *result }()

	qty := intent.Quantity
	if intent.Side == contracts.OrderSideBuy && intent.Notional > 0 {
		qty = math.Floor(intent.Notional/q.Price*1e4) / 1e4
	}
	result.RequestedQty = qty

	switch intent.Side {
	case contracts.OrderSideBuy:
		if qty <= 0 || qty*q.Price > b.cash+1e-6 {
			result.Status = contracts.FillRejected
			result.Message = fmt.Sprintf("insufficient cash: need %.2f, have %.2f", qty*q.Price, b.cash)
			return result, nil
		}
	case contracts.OrderSideSell:
		h, ok := b.holdings[intent.Symbol]
		if !ok || h.Quantity <= 0 {
			result.Status = contracts.FillRejected
			result.Message = "no holding"
			return result, nil
		}
		qty = math.Min(qty, h.Quantity)
	}

	filled := qty
	result.Status = contracts.FillFilled
	if b.partialRatio > 0 && b.partialRatio < 1 {
		filled = math.Floor(qty*b.partialRatio*1e4) / 1e4
		result.Status = contracts.FillPartial
	}
	result.FilledQty = filled
	b.apply(intent.Symbol, intent.Side, filled, q.Price)

	b.logger.WithFields(map[string]interface{}{
		"order_id": result.OrderID,
		"symbol":   intent.Symbol,
		"side":     intent.Side,
		"filled":   filled,
		"price":    q.Price,
		"status":   result.Status,
	}).Info("Paper order filled")

	return result, nil
}

func (b *PaperBroker) apply(symbol string, side contracts.OrderSide, qty, price float64) {
	h, ok := b.holdings[symbol]
	if !ok {
		h = &contracts.BrokerPosition{Symbol: symbol}
		b.holdings[symbol] = h
	}
	switch side {
	case contracts.OrderSideBuy:
		cost := h.AveragePrice*h.Quantity + price*qty
		h.Quantity += qty
		h.AveragePrice = cost / h.Quantity
		b.cash -= price * qty
	case contracts.OrderSideSell:
		h.Quantity -= qty
		b.cash += price * qty
		if h.Quantity <= 1e-9 {
			delete(b.holdings, symbol)
		}
	}
	h.CurrentPrice = price
}

// GetOrder returns a paper order's final result
func (b *PaperBroker) GetOrder(ctx context.Context, orderID string) (*contracts.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("paper order %s: %w", orderID, contracts.ErrNotFound)
	}
	return &r, nil
}

// CancelOrder is a no-op: paper orders settle immediately
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[orderID]; !ok {
		return fmt.Errorf("paper order %s: %w", orderID, contracts.ErrNotFound)
	}
	return nil
}

// GetPositions returns paper holdings
func (b *PaperBroker) GetPositions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.BrokerPosition, 0, len(b.holdings))
	for _, h := range b.holdings {
		out = append(out, *h)
	}
	return out, nil
}

// GetAccountCash returns paper cash
func (b *PaperBroker) GetAccountCash(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash, nil
}

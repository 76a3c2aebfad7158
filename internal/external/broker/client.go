package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/retry"
)

// Client talks to the brokerage REST API
// ⭐ SSOT: 브로커 API 호출은 이 클라이언트에서만
type Client struct {
	http    *httputil.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
	poll    retry.Policy
	logger  *logger.Logger
}

var errOrderPending = errors.New("order not in a terminal state")

// NewClient creates a broker client.
// 주문은 자동 재시도하지 않음 (시장 상황 변화)
func NewClient(cfg config.BrokerConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	httpClient.DisableRetry().WithHeader("Authorization", "Bearer "+cfg.APIKey)
	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		poll: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Retryable:      func(err error) bool { return errors.Is(err, errOrderPending) },
		},
		logger: log.WithField("module", "broker"),
	}
	c.breaker = newBreaker("broker", c.logger)
	return c
}

// newBreaker trips after 3 consecutive failures or >5% failures over 20+ requests
func newBreaker(name string, log *logger.Logger) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
		// 브로커 거부(4xx)는 장애가 아님
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, contracts.ErrBrokerRejection) || errors.Is(err, contracts.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}

// BreakerState returns the current breaker state (status API)
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// PlaceOrder submits a market order and waits for a terminal state
func (c *Client) PlaceOrder(ctx context.Context, intent contracts.OrderIntent) (*contracts.OrderResult, error) {
	req := orderRequest{
		ClientOrderID: intent.ClientOrderID,
		Ticker:        intent.Symbol,
		Side:          strings.ToLower(string(intent.Side)),
		Notional:      intent.Notional,
		Quantity:      intent.Quantity,
		Type:          "market",
	}

	var placed orderResponse
	if err := c.call(func() error {
		return c.http.PostJSONInto(ctx, c.baseURL+"/api/v0/equity/orders", req, &placed)
	}, intent.Symbol); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id":        placed.ID,
		"client_order_id": intent.ClientOrderID,
		"symbol":          intent.Symbol,
		"side":            intent.Side,
		"status":          placed.Status,
	}).Info("Order submitted")

	if placed.terminal() {
		return placed.toResult(), nil
	}

	polled, err := retry.Do(ctx, c.poll, c.logger, "order-status:"+placed.ID, func(ctx context.Context) (orderResponse, error) {
		o, err := c.getOrder(ctx, placed.ID, intent.Symbol)
		if err != nil {
			return o, err
		}
		if !o.terminal() {
			return o, errOrderPending
		}
		return o, nil
	})
	if err == nil {
		return polled.toResult(), nil
	}
	if !errors.Is(err, errOrderPending) {
		return nil, err
	}

	// 폴링 소진: 잔량 취소 후 최종 상태 재조회
	final := placed
	if polled.ID != "" {
		final = polled
	}
	if cerr := c.CancelOrder(ctx, placed.ID); cerr != nil {
		c.logger.WithError(cerr).WithField("order_id", placed.ID).Warn("Cancel after poll timeout failed")
	}
	if o, gerr := c.getOrder(ctx, placed.ID, intent.Symbol); gerr == nil {
		final = o
	}
	res := final.toResult()
	if res.IsPending() {
		c.logger.WithFields(map[string]interface{}{
			"order_id": placed.ID,
			"symbol":   intent.Symbol,
			"status":   final.Status,
		}).Warn("Order still working at broker")
	}
	return res, nil
}

// GetOrder returns the current state of a previously placed order
func (c *Client) GetOrder(ctx context.Context, orderID string) (*contracts.OrderResult, error) {
	o, err := c.getOrder(ctx, orderID, "")
	if err != nil {
		return nil, err
	}
	return o.toResult(), nil
}

func (c *Client) getOrder(ctx context.Context, orderID, symbol string) (orderResponse, error) {
	var o orderResponse
	err := c.call(func() error {
		return c.http.GetJSON(ctx, c.baseURL+"/api/v0/equity/orders/"+orderID, &o)
	}, symbol)
	return o, err
}

// CancelOrder cancels the working remainder of an order.
// 이미 종료된 주문 (404) 은 성공으로 취급
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.call(func() error {
		return c.http.DeleteJSON(ctx, c.baseURL+"/api/v0/equity/orders/"+orderID, nil)
	}, "")
	if errors.Is(err, contracts.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.WithField("order_id", orderID).Info("Order cancelled")
	return nil
}

// GetPositions returns the broker's holdings
func (c *Client) GetPositions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	var resp []positionResponse
	if err := c.call(func() error {
		return c.http.GetJSON(ctx, c.baseURL+"/api/v0/equity/portfolio", &resp)
	}, ""); err != nil {
		return nil, err
	}
	out := make([]contracts.BrokerPosition, 0, len(resp))
	for _, p := range resp {
		out = append(out, contracts.BrokerPosition{
			Symbol:       p.Ticker,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
			CurrentPrice: p.CurrentPrice,
		})
	}
	return out, nil
}

// GetAccountCash returns free cash
func (c *Client) GetAccountCash(ctx context.Context) (float64, error) {
	var resp cashResponse
	if err := c.call(func() error {
		return c.http.GetJSON(ctx, c.baseURL+"/api/v0/equity/account/cash", &resp)
	}, ""); err != nil {
		return 0, err
	}
	return resp.Free, nil
}

// call runs fn through the breaker and maps HTTP failures to the error taxonomy
func (c *Client) call(fn func() error, symbol string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, classify(fn(), symbol)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return contracts.DataUnavailable("broker", err)
	}
	return err
}

func classify(err error, symbol string) error {
	if err == nil {
		return nil
	}
	var se *httputil.StatusError
	if !errors.As(err, &se) {
		return contracts.DataUnavailable("broker", err)
	}
	switch {
	case se.StatusCode == http.StatusNotFound:
		return fmt.Errorf("broker: %w", contracts.ErrNotFound)
	case se.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("broker: %w", contracts.ErrRateLimited)
	case se.StatusCode >= 500:
		return contracts.DataUnavailable("broker", err)
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: broker auth: %s", contracts.ErrConfiguration, se.Body)
	default:
		return contracts.BrokerRejection(symbol, rejectionMessage(se.Body))
	}
}

func rejectionMessage(body string) string {
	var e errorResponse
	if err := json.Unmarshal([]byte(body), &e); err == nil && e.Message != "" {
		return e.Message
	}
	return body
}

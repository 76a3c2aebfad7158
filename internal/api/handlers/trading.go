package handlers

import (
	"net/http"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// PositionReader is the read side of the position book
type PositionReader interface {
	Active() []contracts.Position
	Closed() []contracts.Position
	RealizedPnL() float64
}

// ExitLog lists recent invalidation events
type ExitLog interface {
	RecentEvents() []contracts.ExitEvent
}

// TradingHandler handles position and exit endpoints
// ⭐ SSOT: 거래 API 핸들러는 이 구조체에서만
type TradingHandler struct {
	positions PositionReader
	exits     ExitLog
	logger    *logger.Logger
}

// NewTradingHandler creates a new trading handler
func NewTradingHandler(positions PositionReader, exits ExitLog, log *logger.Logger) *TradingHandler {
	return &TradingHandler{
		positions: positions,
		exits:     exits,
		logger:    log,
	}
}

// ============================================================
// Positions
// ============================================================

// PositionsResponse is the body of GET /api/positions
type PositionsResponse struct {
	Active      []contracts.Position `json:"active"`
	Count       int                  `json:"count"`
	RealizedPnL float64              `json:"realized_pnl"`
}

// GetPositions returns OPEN and PENDING_CLOSE positions
// GET /api/positions?strategy=gap_fade
func (h *TradingHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	active := filterStrategy(h.positions.Active(), r.URL.Query().Get("strategy"))
	respondJSON(w, http.StatusOK, PositionsResponse{
		Active:      active,
		Count:       len(active),
		RealizedPnL: h.positions.RealizedPnL(),
	})
}

// GetClosed returns recently closed positions
// GET /api/positions/closed
func (h *TradingHandler) GetClosed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, filterStrategy(h.positions.Closed(), r.URL.Query().Get("strategy")))
}

// ============================================================
// Exits
// ============================================================

// GetExits returns the most recent invalidation events
// GET /api/exits
func (h *TradingHandler) GetExits(w http.ResponseWriter, r *http.Request) {
	events := h.exits.RecentEvents()
	if events == nil {
		events = []contracts.ExitEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

func filterStrategy(positions []contracts.Position, strategy string) []contracts.Position {
	out := make([]contracts.Position, 0, len(positions))
	for _, p := range positions {
		if strategy == "" || string(p.Strategy) == strategy {
			out = append(out, p)
		}
	}
	return out
}

package contracts

import "time"

// Quote is a live market snapshot
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	PrevClose float64   `json:"prev_close"`
	Volume    float64   `json:"volume"`
	AvgVolume float64   `json:"avg_volume"` // 시장데이터 제공자의 평균 거래량 (없으면 0)
	VWAP      float64   `json:"vwap"`
	MarketCap float64   `json:"market_cap"`
	Timestamp time.Time `json:"timestamp"`
}

// GapPct returns the open vs previous close gap in percent
func (q *Quote) GapPct() float64 {
	if q.PrevClose <= 0 || q.Open <= 0 {
		return 0
	}
	return (q.Open - q.PrevClose) / q.PrevClose * 100
}

// AverageVolume prefers the provider average and falls back to session volume
func (q *Quote) AverageVolume() float64 {
	if q.AvgVolume > 0 {
		return q.AvgVolume
	}
	return q.Volume
}

// Bar is one OHLCV bar
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HistoryWindow is the lookback requested from market data
type HistoryWindow string

const (
	Window5D HistoryWindow = "5d"
	Window1M HistoryWindow = "1mo"
	Window3M HistoryWindow = "3mo"
	Window1Y HistoryWindow = "1y"
	Window3Y HistoryWindow = "3y"
)

// TradingDays returns the approximate number of daily bars in the window
func (w HistoryWindow) TradingDays() int {
	switch w {
	case Window5D:
		return 5
	case Window1M:
		return 21
	case Window3M:
		return 63
	case Window1Y:
		return 252
	case Window3Y:
		return 756
	default:
		return 0
	}
}

// Profile carries slow-moving instrument facts used by scoring
type Profile struct {
	Symbol         string      `json:"symbol"`
	Name           string      `json:"name,omitempty"`
	Sector         string      `json:"sector,omitempty"`
	MarketCap      float64     `json:"market_cap"`
	AnalystCount   int         `json:"analyst_count"`
	Recommendation string      `json:"recommendation,omitempty"` // strong_buy, buy, hold, ...
	EarningsDates  []time.Time `json:"earnings_dates,omitempty"` // past report dates, newest first
}

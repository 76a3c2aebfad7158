package marketdata

import (
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

const dateLayout = "2006-01-02"

type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Volume        float64 `json:"volume"`
	AverageVolume float64 `json:"averageVolume"`
	VWAP          float64 `json:"vwap"`
	MarketCap     float64 `json:"marketCap"`
	Timestamp     int64   `json:"timestamp"` // unix seconds
}

func (q quoteResponse) toQuote() *contracts.Quote {
	out := &contracts.Quote{
		Symbol:    q.Symbol,
		Price:     q.Price,
		Open:      q.Open,
		PrevClose: q.PreviousClose,
		Volume:    q.Volume,
		AvgVolume: q.AverageVolume,
		VWAP:      q.VWAP,
		MarketCap: q.MarketCap,
	}
	if q.Timestamp > 0 {
		out.Timestamp = time.Unix(q.Timestamp, 0).UTC()
	}
	return out
}

type barResponse struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type chartResponse struct {
	Symbol string        `json:"symbol"`
	Bars   []barResponse `json:"bars"`
}

type profileResponse struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Sector         string   `json:"sector"`
	MarketCap      float64  `json:"marketCap"`
	AnalystCount   int      `json:"analystCount"`
	Recommendation string   `json:"recommendation"`
	EarningsDates  []string `json:"earningsDates"`
}

type earningsResponse struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Timing string `json:"timing"`
}

type instrumentResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Tradeable bool    `json:"tradeable"`
	Sector    string  `json:"sector"`
	MarketCap float64 `json:"marketCap"`
}

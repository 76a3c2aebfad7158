package scoring

import (
	"math"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// =============================================================================
// Indicators
// bars는 오래된 것 → 최신 순 (마지막 원소가 최신)
// =============================================================================

// Closes extracts close prices
func Closes(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA returns the simple moving average of the last n values (0 if not enough data)
func SMA(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// RSI computes Wilder's RSI over period.
// 데이터 부족 시 50 (중립)
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder smoothing
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ReturnPct returns the percent change over the last n bars
func ReturnPct(closes []float64, n int) float64 {
	if n <= 0 || len(closes) < n+1 {
		return 0
	}
	past := closes[len(closes)-1-n]
	if past == 0 {
		return 0
	}
	return (closes[len(closes)-1] - past) / past * 100
}

// AvgVolume averages the volume of the last n bars
func AvgVolume(bars []contracts.Bar, n int) float64 {
	if n <= 0 || len(bars) < n {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Volume
	}
	return sum / float64(n)
}

// VolumeRatio is the last bar's volume over the prior n-bar average
func VolumeRatio(bars []contracts.Bar, n int) float64 {
	if len(bars) < n+1 {
		return 0
	}
	avg := AvgVolume(bars[:len(bars)-1], n)
	if avg == 0 {
		return 0
	}
	return bars[len(bars)-1].Volume / avg
}

// HighestHigh returns the max high over the last n bars
func HighestHigh(bars []contracts.Bar, n int) float64 {
	if n > len(bars) {
		n = len(bars)
	}
	hi := 0.0
	for _, b := range bars[len(bars)-n:] {
		if b.High > hi {
			hi = b.High
		}
	}
	return hi
}

// DrawdownPct is the percent drop of the last close from the highest close of the last n bars
func DrawdownPct(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if n > len(closes) {
		n = len(closes)
	}
	peak := 0.0
	for _, c := range closes[len(closes)-n:] {
		if c > peak {
			peak = c
		}
	}
	if peak == 0 {
		return 0
	}
	return (peak - closes[len(closes)-1]) / peak * 100
}

// Volatility is the standard deviation of daily returns (percent) over the last n bars
func Volatility(closes []float64, n int) float64 {
	if n > len(closes)-1 {
		n = len(closes) - 1
	}
	if n < 2 {
		return 0
	}
	rets := make([]float64, 0, n)
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(rets)-1))
}

// GapPct is the open-vs-previous-close gap of bar i
func GapPct(bars []contracts.Bar, i int) float64 {
	if i <= 0 || i >= len(bars) || bars[i-1].Close == 0 {
		return 0
	}
	return (bars[i].Open - bars[i-1].Close) / bars[i-1].Close * 100
}

// IndexOnOrAfter finds the first bar dated on or after day (date precision)
func IndexOnOrAfter(bars []contracts.Bar, day time.Time) int {
	y, m, d := day.Date()
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for i, b := range bars {
		by, bm, bd := b.Time.Date()
		if !time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Before(target) {
			return i
		}
	}
	return -1
}

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// sectorETF maps profile sectors to SPDR sector ETFs
var sectorETF = map[string]string{
	"Technology":             "XLK",
	"Information Technology": "XLK",
	"Financial Services":     "XLF",
	"Financials":             "XLF",
	"Healthcare":             "XLV",
	"Health Care":            "XLV",
	"Energy":                 "XLE",
	"Industrials":            "XLI",
	"Consumer Cyclical":      "XLY",
	"Consumer Discretionary": "XLY",
	"Consumer Defensive":     "XLP",
	"Consumer Staples":       "XLP",
	"Utilities":              "XLU",
	"Basic Materials":        "XLB",
	"Materials":              "XLB",
	"Real Estate":            "XLRE",
	"Communication Services": "XLC",
}

// SectorETF returns the ETF tracking a sector ("" if unknown)
func SectorETF(sector string) string {
	return sectorETF[sector]
}

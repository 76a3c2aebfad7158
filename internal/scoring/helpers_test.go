package scoring

import (
	"math"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

var barStart = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

// barsFromCloses builds daily bars where each bar opens at the previous close
func barsFromCloses(closes []float64, volume float64) []contracts.Bar {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = contracts.Bar{
			Time:   barStart.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, c) * 1.005,
			Low:    math.Min(open, c) * 0.995,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func linearCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

package scoring

import (
	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
)

// BuildStrategies instantiates every enabled strategy with its configured weights
func BuildStrategies(cfg *strategyconfig.Config) []Strategy {
	var out []Strategy
	for _, id := range cfg.EnabledStrategies() {
		w := cfg.Strategies[id].Weights
		switch id {
		case contracts.StrategyEarnings:
			out = append(out, NewEarnings(w))
		case contracts.StrategySectorMomentum:
			out = append(out, NewSectorMomentum(w))
		case contracts.StrategyMeanReversion:
			out = append(out, NewMeanReversion(w))
		case contracts.StrategyBreakout:
			out = append(out, NewBreakout(w))
		case contracts.StrategyGapFade:
			out = append(out, NewGapFade(w))
		case contracts.StrategyVWAP:
			out = append(out, NewVWAP(w))
		case contracts.StrategyORB:
			out = append(out, NewORB(w))
		}
	}
	return out
}

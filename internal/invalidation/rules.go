package invalidation

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// =============================================================================
// Exit rules
// ⭐ SSOT: 평가 순서 StopLoss → TrailingStop → MaxHold → NewsInvalidation → SessionForceClose
// =============================================================================

// Observation is one evaluation input. HighWaterMark is already updated.
type Observation struct {
	Position   contracts.Position
	Price      float64
	PriceKnown bool
	Now        time.Time // 시장 타임존
	News       *NewsFlag
	ForceClose string // HH:MM, Exit.SessionClose 가 없을 때 사용
}

// Verdict is a triggered rule
type Verdict struct {
	Reason contracts.ExitReason
	Detail string
}

// Rule is one invalidation condition
type Rule interface {
	Reason() contracts.ExitReason
	Check(obs Observation) (Verdict, bool)
}

// DefaultRules returns the rules in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		StopLoss{},
		TrailingStop{},
		MaxHold{},
		NewsInvalidation{},
		SessionForceClose{},
	}
}

// Evaluate returns the first triggered rule
func Evaluate(obs Observation, rules []Rule) (Verdict, bool) {
	for _, r := range rules {
		if v, ok := r.Check(obs); ok {
			return v, true
		}
	}
	return Verdict{}, false
}

// StopLoss triggers at price ≤ entry × (1 − stop%)
type StopLoss struct{}

func (StopLoss) Reason() contracts.ExitReason { return contracts.ExitReasonStopLoss }

func (StopLoss) Check(obs Observation) (Verdict, bool) {
	p := obs.Position
	if !obs.PriceKnown || p.Exit.StopLossPct <= 0 || p.EntryPrice <= 0 {
		return Verdict{}, false
	}
	stop := p.EntryPrice * (1 - p.Exit.StopLossPct/100)
	if obs.Price > stop {
		return Verdict{}, false
	}
	return Verdict{
		Reason: contracts.ExitReasonStopLoss,
		Detail: fmt.Sprintf("price %.2f <= stop %.2f (-%.1f%%)", obs.Price, stop, p.Exit.StopLossPct),
	}, true
}

// TrailingStop triggers at price ≤ HWM × (1 − trail%), armed once HWM is above entry
type TrailingStop struct{}

func (TrailingStop) Reason() contracts.ExitReason { return contracts.ExitReasonTrailingStop }

func (TrailingStop) Check(obs Observation) (Verdict, bool) {
	p := obs.Position
	if !obs.PriceKnown || p.Exit.TrailingStopPct <= 0 || p.HighWaterMark <= p.EntryPrice {
		return Verdict{}, false
	}
	trail := p.HighWaterMark * (1 - p.Exit.TrailingStopPct/100)
	if obs.Price > trail {
		return Verdict{}, false
	}
	return Verdict{
		Reason: contracts.ExitReasonTrailingStop,
		Detail: fmt.Sprintf("price %.2f <= trail %.2f (hwm %.2f -%.1f%%)", obs.Price, trail, p.HighWaterMark, p.Exit.TrailingStopPct),
	}, true
}

// MaxHold triggers once the position has been held MaxHoldDays calendar days
type MaxHold struct{}

func (MaxHold) Reason() contracts.ExitReason { return contracts.ExitReasonMaxHold }

func (MaxHold) Check(obs Observation) (Verdict, bool) {
	p := obs.Position
	if p.Exit.MaxHoldDays <= 0 || p.EntryTime.IsZero() {
		return Verdict{}, false
	}
	days := int(obs.Now.Sub(p.EntryTime) / (24 * time.Hour))
	if days < p.Exit.MaxHoldDays {
		return Verdict{}, false
	}
	return Verdict{
		Reason: contracts.ExitReasonMaxHold,
		Detail: fmt.Sprintf("held %d days (max %d)", days, p.Exit.MaxHoldDays),
	}, true
}

// NewsInvalidation triggers on a pending material headline for the symbol
type NewsInvalidation struct{}

func (NewsInvalidation) Reason() contracts.ExitReason { return contracts.ExitReasonNewsInvalidation }

func (NewsInvalidation) Check(obs Observation) (Verdict, bool) {
	if obs.News == nil {
		return Verdict{}, false
	}
	return Verdict{
		Reason: contracts.ExitReasonNewsInvalidation,
		Detail: obs.News.Headline,
	}, true
}

// SessionForceClose closes intraday positions at the configured pre-close time
// (or on any later day).
type SessionForceClose struct{}

func (SessionForceClose) Reason() contracts.ExitReason {
	return contracts.ExitReasonSessionForceClose
}

func (SessionForceClose) Check(obs Observation) (Verdict, bool) {
	p := obs.Position
	if !p.Exit.Intraday {
		return Verdict{}, false
	}
	hhmm := p.Exit.SessionClose
	if hhmm == "" {
		hhmm = obs.ForceClose
	}
	cutoff, err := time.Parse("15:04", hhmm)
	if err != nil {
		return Verdict{}, false
	}

	now := obs.Now
	entry := p.EntryTime.In(now.Location())
	ey, em, ed := entry.Date()
	ny, nm, nd := now.Date()
	overnight := !p.EntryTime.IsZero() && (ny != ey || nm != em || nd != ed)

	at := time.Date(ny, nm, nd, cutoff.Hour(), cutoff.Minute(), 0, 0, now.Location())
	if !overnight && now.Before(at) {
		return Verdict{}, false
	}
	return Verdict{
		Reason: contracts.ExitReasonSessionForceClose,
		Detail: fmt.Sprintf("intraday cutoff %s", hhmm),
	}, true
}

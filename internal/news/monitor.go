package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/metrics"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// =============================================================================
// News Impact Monitor
// ⭐ SSOT: material 헤드라인은 청산 신호만 올림. 청산은 invalidation 엔진 권한
// =============================================================================

const (
	maxHeadlineAge = 24 * time.Hour
	seenRetention  = 48 * time.Hour
)

// Sink receives news invalidation signals (the invalidation engine)
type Sink interface {
	RaiseNewsInvalidation(symbol, headline string) bool
}

// Holdings lists symbols with an OPEN position
type Holdings interface {
	OpenSymbols() []string
}

// Deps are the collaborators of the monitor
type Deps struct {
	Source   contracts.NewsSource
	Holdings Holdings
	Sink     Sink
	Notifier contracts.Notifier
	Metrics  *metrics.Registry
}

// Classified is one new headline with its impact
type Classified struct {
	contracts.Headline
	Impact  contracts.NewsImpact `json:"impact"`
	Keyword string               `json:"keyword,omitempty"`
	Raised  bool                 `json:"raised"`
}

// PollResult summarizes one poll
type PollResult struct {
	Symbols   int          `json:"symbols"`
	Headlines []Classified `json:"headlines,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
}

// Monitor polls headlines for held symbols
type Monitor struct {
	cfg        strategyconfig.News
	classifier *Classifier
	deps       Deps
	logger     *logger.Logger
	now        func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time // symbol|normalized title → first seen

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a news monitor
func NewMonitor(cfg strategyconfig.News, deps Deps, log *logger.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
		deps:       deps,
		logger:     log.WithField("module", "news"),
		now:        time.Now,
		seen:       make(map[string]time.Time),
	}
}

// Poll fetches and classifies headlines for every OPEN symbol once
func (m *Monitor) Poll(ctx context.Context) *PollResult {
	symbols := m.deps.Holdings.OpenSymbols()
	result := &PollResult{Symbols: len(symbols)}
	now := m.now()
	m.prune(now)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		headlines, err := m.deps.Source.Headlines(ctx, symbol)
		if err != nil {
			m.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to fetch headlines")
			result.Errors = append(result.Errors, symbol+": "+err.Error())
			continue
		}

		for _, h := range headlines {
			if h.Symbol == "" {
				h.Symbol = symbol
			}
			if !h.PublishedAt.IsZero() && now.Sub(h.PublishedAt) > maxHeadlineAge {
				continue
			}
			if !m.markSeen(h, now) {
				continue
			}
			result.Headlines = append(result.Headlines, m.handle(ctx, h))
		}
	}
	return result
}

func (m *Monitor) handle(ctx context.Context, h contracts.Headline) Classified {
	match := m.classifier.Classify(h.Title)
	c := Classified{Headline: h, Impact: match.Impact, Keyword: match.Keyword}
	m.deps.Metrics.RecordHeadline(string(match.Impact))

	log := m.logger.WithFields(map[string]interface{}{
		"symbol":  h.Symbol,
		"impact":  match.Impact,
		"keyword": match.Keyword,
		"title":   h.Title,
	})

	switch match.Impact {
	case contracts.NewsMaterial:
		c.Raised = m.deps.Sink.RaiseNewsInvalidation(h.Symbol, h.Title)
		log.WithField("raised", c.Raised).Warn("Material headline")
		m.notify(ctx, fmt.Sprintf("[material] %s: %s", h.Symbol, h.Title))
	case contracts.NewsPositive, contracts.NewsNegative:
		log.Info("Headline classified")
		m.notify(ctx, fmt.Sprintf("[%s] %s: %s", match.Impact, h.Symbol, h.Title))
	default:
		log.Debug("Headline ignored")
	}
	return c
}

// markSeen returns false for duplicates
func (m *Monitor) markSeen(h contracts.Headline, now time.Time) bool {
	key := h.Symbol + "|" + normalize(h.Title)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[key]; dup {
		return false
	}
	m.seen[key] = now
	return true
}

func (m *Monitor) prune(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, at := range m.seen {
		if now.Sub(at) > seenRetention {
			delete(m.seen, k)
		}
	}
}

func (m *Monitor) notify(ctx context.Context, msg string) {
	if m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.Notify(ctx, contracts.CategoryNews, msg); err != nil {
		m.logger.WithError(err).Warn("Notification failed")
	}
}

// Start polls every PollInterval until Stop or ctx is done
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return fmt.Errorf("news monitor already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.runMu.Unlock()

	m.logger.WithField("interval", m.cfg.PollInterval.String()).Info("News monitor started")

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.runMu.Lock()
				m.running = false
				m.runMu.Unlock()
				return
			case <-stopCh:
				return
			case <-ticker.C:
				m.Poll(ctx)
			}
		}
	}()
	return nil
}

// Stop stops polling and waits for the running poll
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	doneCh := m.doneCh
	m.runMu.Unlock()

	<-doneCh
	m.logger.Info("News monitor stopped")
}

// IsRunning reports whether polling is active
func (m *Monitor) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

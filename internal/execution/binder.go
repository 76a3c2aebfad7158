package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// Binder hands out the controller for the current week's frozen universe.
// 주가 바뀌면 새 유니버스를 로드해서 새 Controller 를 만듦
type Binder struct {
	store  contracts.UniverseStore
	cfg    *strategyconfig.Config
	deps   Deps
	opts   []Option
	logger *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	ctrl *Controller
}

// NewBinder creates a binder over the universe store
func NewBinder(store contracts.UniverseStore, cfg *strategyconfig.Config, deps Deps, log *logger.Logger, opts ...Option) *Binder {
	return &Binder{
		store:  store,
		cfg:    cfg,
		deps:   deps,
		opts:   opts,
		logger: log,
		now:    time.Now,
	}
}

// CurrentWeek returns the ISO week of now in the exchange timezone
func (b *Binder) CurrentWeek() contracts.WeekKey {
	return contracts.WeekKeyFor(b.now().In(b.cfg.Location()))
}

// Current returns the controller for this week, loading it on first use
func (b *Binder) Current(ctx context.Context) (*Controller, error) {
	week := b.CurrentWeek()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl != nil && b.ctrl.Week() == week {
		return b.ctrl, nil
	}

	u, err := b.store.LoadUniverse(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("load universe %s: %w", week, err)
	}
	ctrl, err := NewController(u, b.cfg, b.deps, b.logger, b.opts...)
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]interface{}{
		"week":    week,
		"signals": len(u.Signals),
	}).Info("Bound weekday execution to frozen universe")
	b.ctrl = ctrl
	return ctrl, nil
}

// Universe returns a copy of the bound universe
func (c *Controller) Universe() *contracts.WeeklyUniverse {
	return c.universe.Clone()
}

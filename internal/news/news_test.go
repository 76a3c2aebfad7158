package news

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/logger"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(strategyconfig.Default().News)

	tests := []struct {
		title   string
		impact  contracts.NewsImpact
		keyword string
	}{
		{"Apple beats earnings estimates", contracts.NewsMaterial, "earnings"},
		{"Pfizer: FDA grants approval for new drug", contracts.NewsMaterial, "fda"},
		{"Board approves spin-off of cloud unit", contracts.NewsMaterial, "spin-off"},
		{"Nvidia upgraded to Outperform at Citi", contracts.NewsPositive, "upgraded"},
		{"Intel plunges on weak demand", contracts.NewsNegative, "plunges"},
		{"Tesla wins contract, faces lawsuit", contracts.NewsNone, ""},
		{"Company prices secondary offering", contracts.NewsNone, ""},
		{"Drugmaker shares jump after FDA-approved label expansion", contracts.NewsMaterial, "fda"},
		{"Chipmaker stock record-breaking rally", contracts.NewsPositive, "record"},
		{"Retailer shares post-downgraded slide", contracts.NewsNegative, "downgraded"},
		{"Board weighs spin off of cloud unit", contracts.NewsNone, ""},
		{"", contracts.NewsNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			m := c.Classify(tt.title)
			assert.Equal(t, tt.impact, m.Impact)
			assert.Equal(t, tt.keyword, m.Keyword)
		})
	}
}

// =============================================================================
// monitor
// =============================================================================

type fakeSource struct {
	mu        sync.Mutex
	headlines map[string][]contracts.Headline
	err       map[string]error
}

func (s *fakeSource) Headlines(ctx context.Context, symbol string) ([]contracts.Headline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err[symbol]; err != nil {
		return nil, err
	}
	return s.headlines[symbol], nil
}

type holdings []string

func (h holdings) OpenSymbols() []string { return h }

type recordingSink struct {
	mu     sync.Mutex
	raised map[string]string
	accept bool
}

func (s *recordingSink) RaiseNewsInvalidation(symbol, headline string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raised == nil {
		s.raised = make(map[string]string)
	}
	s.raised[symbol] = headline
	return s.accept
}

type countingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *countingNotifier) Notify(ctx context.Context, category contracts.NotifyCategory, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if category == contracts.CategoryNews {
		n.msgs = append(n.msgs, message)
	}
	return errors.New("telegram down")
}

var now = time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)

func newMonitor(src *fakeSource, held []string, sink *recordingSink, n *countingNotifier) *Monitor {
	m := NewMonitor(strategyconfig.Default().News, Deps{
		Source:   src,
		Holdings: holdings(held),
		Sink:     sink,
		Notifier: n,
	}, logger.NewNop())
	m.now = func() time.Time { return now }
	return m
}

func TestPollRaisesMaterialOnly(t *testing.T) {
	src := &fakeSource{headlines: map[string][]contracts.Headline{
		"Z": {
			{Title: "Z under SEC investigation", PublishedAt: now.Add(-time.Hour)},
			{Title: "Z upgraded to buy", PublishedAt: now.Add(-time.Hour)},
			{Title: "Z to present at conference", PublishedAt: now.Add(-time.Hour)},
		},
	}}
	sink := &recordingSink{accept: true}
	n := &countingNotifier{}
	m := newMonitor(src, []string{"Z"}, sink, n)

	res := m.Poll(context.Background())
	require.Len(t, res.Headlines, 3)
	assert.Equal(t, contracts.NewsMaterial, res.Headlines[0].Impact)
	assert.True(t, res.Headlines[0].Raised)
	assert.Equal(t, contracts.NewsPositive, res.Headlines[1].Impact)
	assert.False(t, res.Headlines[1].Raised)
	assert.Equal(t, contracts.NewsNone, res.Headlines[2].Impact)

	assert.Equal(t, map[string]string{"Z": "Z under SEC investigation"}, sink.raised)
	assert.Len(t, n.msgs, 2, "notifier failure never stops the poll")
}

func TestPollDeduplicates(t *testing.T) {
	src := &fakeSource{headlines: map[string][]contracts.Headline{
		"AAPL": {
			{Title: "Apple raises guidance", PublishedAt: now.Add(-time.Hour)},
			{Title: "APPLE RAISES GUIDANCE!", PublishedAt: now.Add(-time.Hour)},
		},
	}}
	sink := &recordingSink{accept: true}
	m := newMonitor(src, []string{"AAPL"}, sink, &countingNotifier{})

	res := m.Poll(context.Background())
	assert.Len(t, res.Headlines, 1)

	res = m.Poll(context.Background())
	assert.Empty(t, res.Headlines)
}

func TestPollSkipsStaleHeadlines(t *testing.T) {
	src := &fakeSource{headlines: map[string][]contracts.Headline{
		"MSFT": {{Title: "Microsoft CEO steps down", PublishedAt: now.Add(-25 * time.Hour)}},
	}}
	sink := &recordingSink{accept: true}
	m := newMonitor(src, []string{"MSFT"}, sink, &countingNotifier{})

	res := m.Poll(context.Background())
	assert.Empty(t, res.Headlines)
	assert.Empty(t, sink.raised)
}

func TestPollIsolatesSourceErrors(t *testing.T) {
	src := &fakeSource{
		headlines: map[string][]contracts.Headline{
			"B": {{Title: "B announces merger", PublishedAt: now}},
		},
		err: map[string]error{"A": contracts.ErrRateLimited},
	}
	sink := &recordingSink{accept: true}
	m := newMonitor(src, []string{"A", "B"}, sink, &countingNotifier{})

	res := m.Poll(context.Background())
	assert.Equal(t, 2, res.Symbols)
	assert.Len(t, res.Errors, 1)
	require.Len(t, res.Headlines, 1)
	assert.Equal(t, "B", res.Headlines[0].Symbol)
}

func TestStartStop(t *testing.T) {
	cfg := strategyconfig.Default().News
	cfg.PollInterval = 5 * time.Millisecond
	m := NewMonitor(cfg, Deps{Source: &fakeSource{}, Holdings: holdings(nil), Sink: &recordingSink{}}, logger.NewNop())

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	time.Sleep(15 * time.Millisecond)
	m.Stop()
	assert.False(t, m.IsRunning())
}

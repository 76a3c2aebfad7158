package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// =============================================================================
// Dispatcher
// ⭐ SSOT: 알림은 fire-and-forget. 실패가 매매 동작을 멈추지 않음
// =============================================================================

const (
	queueSize   = 256
	sendTimeout = 10 * time.Second
)

// Log writes notifications to the structured log
type Log struct {
	logger *logger.Logger
}

// NewLog creates a log notifier
func NewLog(log *logger.Logger) *Log {
	return &Log{logger: log.WithField("module", "notify")}
}

// Notify logs one message
func (l *Log) Notify(ctx context.Context, category contracts.NotifyCategory, message string) error {
	entry := l.logger.WithField("category", category)
	if category == contracts.CategoryError {
		entry.Warn(message)
		return nil
	}
	entry.Info(message)
	return nil
}

type message struct {
	category contracts.NotifyCategory
	text     string
}

// Dispatcher queues notifications and fans them out from one goroutine
type Dispatcher struct {
	sinks  []contracts.Notifier
	logger *logger.Logger
	queue  chan message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher over the given sinks
func NewDispatcher(log *logger.Logger, sinks ...contracts.Notifier) *Dispatcher {
	d := &Dispatcher{
		sinks:  sinks,
		logger: log.WithField("module", "notify"),
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues a message; it never blocks and never fails
func (d *Dispatcher) Notify(ctx context.Context, category contracts.NotifyCategory, text string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- message{category: category, text: text}:
	default:
		d.logger.WithField("category", category).Warn("Notification queue full, dropping message")
	}
	return nil
}

// Close stops accepting messages and waits until the queue is drained
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for m := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := sink.Notify(ctx, m.category, m.text); err != nil {
				d.logger.WithError(err).WithField("category", m.category).Warn("Notification delivery failed")
			}
			cancel()
		}
	}
}

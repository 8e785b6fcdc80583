package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher delivers messages on background workers so callers never wait
// on the transport. Failures are logged and counted, not returned.
type Dispatcher struct {
	gw          Gateway
	logger      *zap.SugaredLogger
	queue       chan Message
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent     atomic.Int64
	failures atomic.Int64
}

func NewDispatcher(gw Gateway, logger *zap.SugaredLogger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		gw:          gw,
		logger:      logger,
		queue:       make(chan Message, queueSize),
		sendTimeout: defaultSendTimeout,
	}
	d.wg.Add(workers)
	for range workers {
		go d.work()
	}
	return d
}

// Notify enqueues msg without blocking.
func (d *Dispatcher) Notify(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.failures.Add(1)
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.gw.Send(ctx, msg.To, msg.Subject, msg.Body)
		cancel()
		if err != nil {
			d.failures.Add(1)
			d.logger.Warnw("notification delivery failed", "to", msg.To, "subject", msg.Subject, "err", err)
			continue
		}
		d.sent.Add(1)
		d.logger.Debugw("notification delivered", "to", msg.To, "subject", msg.Subject)
	}
}

// Sent and Failures count delivered and dropped messages.
func (d *Dispatcher) Sent() int64     { return d.sent.Load() }
func (d *Dispatcher) Failures() int64 { return d.failures.Load() }

// Close stops accepting messages and waits for queued ones to drain or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBufferFull is returned by Emit when the async buffer cannot take the event.
var (
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

// Sink persists or forwards events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Publisher hands events to a Sink. With a buffer it enqueues without
// blocking and a Worker drains the queue; without one it writes inline.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
	onDrop func()

	buffer int
	inbox  chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDropHook is called each time an event is dropped.
func WithDropHook(fn func()) Option {
	return func(p *Publisher) {
		p.onDrop = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.Default(),
		now:    time.Now,
		onDrop: func() {},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan Event, p.buffer)
		p.done = make(chan struct{})
		w := NewWorker(p.sink, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			w.Run(context.Background())
		}()
	}
	return p
}

// Emit stamps and delivers event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.inbox == nil {
		return p.sink.Write(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.onDrop()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.onDrop()
		p.logger.Warn("audit event dropped", "action", event.Action, "wizard", event.Wizard)
		return ErrBufferFull
	}
}

// Close stops accepting events and waits until the queue is drained.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
}

// Package broadcast decouples state mutations from fan-out delivery.
//
// A Channel is an unbounded FIFO drained by a single delivery goroutine:
// publishers never block and never learn about observers, a slow or broken
// observer never reorders or stalls delivery to the rest. Independent
// channels (canvas events, chat events) share nothing.
package broadcast

import (
	"sync"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

// Observer receives every message published after it attaches. Send errors
// detach the observer; they are never surfaced to publishers.
type Observer interface {
	ID() string
	Send(msg model.Message) error
}

type Channel struct {
	name string
	log  logx.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []model.Message
	closed bool

	obsMu     sync.Mutex
	observers map[string]Observer

	wg      sync.WaitGroup
	started bool
}

func New(name string, log logx.Logger) *Channel {
	if log.IsZero() {
		log = logx.Nop()
	}
	ch := &Channel{
		name:      name,
		log:       log.With(logx.String("channel", name)),
		observers: make(map[string]Observer),
	}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// Start launches the delivery worker. Idempotent.
func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.wg.Add(1)
	go c.worker()
	c.log.Debug("delivery worker started")
}

// Stop closes the channel and waits for the worker to drain what was
// already published. Publish becomes a no-op afterwards.
func (c *Channel) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cond.Signal()
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Debug("delivery worker stopped")
}

// Publish appends a message for delivery. It never blocks and never fails
// because of observer state; the worker is woken only when the queue was
// empty, a running drain picks up the rest on its own.
func (c *Channel) Publish(msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	wasEmpty := len(c.queue) == 0
	c.queue = append(c.queue, msg)
	if wasEmpty {
		c.cond.Signal()
	}
}

// Attach registers an observer for all subsequent messages.
func (c *Channel) Attach(o Observer) {
	c.obsMu.Lock()
	c.observers[o.ID()] = o
	n := len(c.observers)
	c.obsMu.Unlock()
	c.log.Debug("observer attached", logx.String("observer", o.ID()), logx.Int("total", n))
}

// Detach removes an observer. Unknown ids are ignored.
func (c *Channel) Detach(id string) {
	c.obsMu.Lock()
	delete(c.observers, id)
	n := len(c.observers)
	c.obsMu.Unlock()
	c.log.Debug("observer detached", logx.String("observer", id), logx.Int("total", n))
}

// Observers reports the number of attached observers.
func (c *Channel) Observers() int {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	return len(c.observers)
}

func (c *Channel) worker() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 && c.closed {
			c.mu.Unlock()
			return
		}
		msg := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.deliver(msg)
	}
}

// deliver sends one message to every currently attached observer. A failing
// observer is dropped on the spot; the failure stops with us.
func (c *Channel) deliver(msg model.Message) {
	c.obsMu.Lock()
	targets := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		targets = append(targets, o)
	}
	c.obsMu.Unlock()

	for _, o := range targets {
		if err := o.Send(msg); err != nil {
			c.Detach(o.ID())
			c.log.Debug("observer dropped on send failure", logx.String("observer", o.ID()), logx.Err(err))
		}
	}
}

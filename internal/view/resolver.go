package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"marketdash/internal/util"
	"marketdash/pkg/dashapi"
)

// Fetch produces a page's data. It must honour ctx cancellation.
type Fetch[T any] func(ctx context.Context) (T, error)

// Ticket identifies one run of a Resolver. Done closes once that run has
// settled or been discarded as stale.
type Ticket struct {
	Gen  uint64
	done chan struct{}
}

func newTicket(gen uint64) *Ticket {
	return &Ticket{Gen: gen, done: make(chan struct{})}
}

func settledTicket(gen uint64) *Ticket {
	t := newTicket(gen)
	close(t.done)
	return t
}

// Done returns a channel closed when the run is finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the run is finished or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns a ticket that finishes once every non-nil t has. It carries
// the Gen of the last non-nil ticket, and is nil when all are nil.
func All(ts ...*Ticket) *Ticket {
	var live []*Ticket
	for _, t := range ts {
		if t != nil {
			live = append(live, t)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	out := newTicket(live[len(live)-1].Gen)
	go func() {
		defer close(out.done)
		for _, t := range live {
			<-t.done
		}
	}()
	return out
}

// Resolver owns the State of one page. Every Run starts a new generation;
// only the latest generation may settle. Earlier runs are cancelled and
// their results dropped.
type Resolver[T any] struct {
	name    string
	failMsg string
	log     *slog.Logger

	mu     sync.Mutex
	gen    uint64
	state  State[T]
	cancel context.CancelFunc
}

// NewResolver creates a resolver whose failures display failMsg unless the
// error carries its own user-facing message.
func NewResolver[T any](name, failMsg string, log *slog.Logger) *Resolver[T] {
	if log == nil {
		log = util.Discard()
	}
	return &Resolver[T]{name: name, failMsg: failMsg, log: log}
}

// State returns a snapshot of the current state.
func (r *Resolver[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run enters Loading before returning, then runs fetch in the background.
func (r *Resolver[T]) Run(ctx context.Context, fetch Fetch[T]) *Ticket {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	gen := r.advance()
	r.cancel = cancel
	r.state = State[T]{Status: Loading, Gen: gen}
	r.mu.Unlock()

	r.log.Debug("resolve", "page", r.name, "gen", gen)

	t := newTicket(gen)
	go func() {
		defer close(t.done)
		defer cancel()
		data, err := fetch(runCtx)
		r.settle(gen, data, err)
	}()
	return t
}

// Fail supersedes any run in flight and settles immediately as Failed.
func (r *Resolver[T]) Fail(err error) *Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.advance()
	r.state = State[T]{Status: Failed, Message: r.message(err), Err: err, Gen: gen}
	return settledTicket(gen)
}

// Miss supersedes any run in flight and settles as Missing with msg.
func (r *Resolver[T]) Miss(msg string) *Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.advance()
	r.state = State[T]{Status: Missing, Message: msg, Gen: gen}
	return settledTicket(gen)
}

// Reset cancels any run in flight and returns to Idle.
func (r *Resolver[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.advance()
	r.state = State[T]{Status: Idle, Gen: gen}
}

// advance bumps the generation and cancels the previous run. Caller holds
// r.mu.
func (r *Resolver[T]) advance() uint64 {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	return r.gen
}

func (r *Resolver[T]) settle(gen uint64, data T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		r.log.Debug("discard stale result", "page", r.name, "gen", gen, "current", r.gen)
		return
	}
	r.cancel = nil

	if err != nil {
		r.log.Warn("resolve failed", "page", r.name, "gen", gen, "error", err)
		r.state = State[T]{Status: Failed, Message: r.message(err), Err: err, Gen: gen}
	} else {
		r.log.Debug("resolved", "page", r.name, "gen", gen)
		r.state = State[T]{Status: Ready, Data: data, Gen: gen}
	}
}

func (r *Resolver[T]) message(err error) string {
	return Message(err, r.failMsg)
}

// Message maps err to the text shown in an error banner. Validation errors
// speak for themselves; everything else shows fallback.
func Message(err error, fallback string) string {
	var ve *dashapi.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return fallback
}

package capture

import (
	"context"
	"fmt"
	"sync"
)

type grant struct {
	stream Stream
	err    error
}

// Gate is an Acquirer whose requests are answered out of band, typically by
// the browser replying to its permission prompt. Acquire waits until Grant or
// Deny is called for the same id, or ctx is done.
type Gate struct {
	mu      sync.Mutex
	pending map[string]chan grant
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{pending: make(map[string]chan grant)}
}

// Acquire waits for the request for id to be answered. A second Acquire for an
// id that is still pending denies the first.
func (g *Gate) Acquire(ctx context.Context, id string) (Stream, error) {
	ch := make(chan grant, 1)
	g.mu.Lock()
	if old, ok := g.pending[id]; ok {
		old <- grant{err: fmt.Errorf("%w: superseded", ErrDenied)}
	}
	g.pending[id] = ch
	g.mu.Unlock()

	select {
	case r := <-ch:
		return r.stream, r.err
	case <-ctx.Done():
		g.mu.Lock()
		if g.pending[id] == ch {
			delete(g.pending, id)
		}
		g.mu.Unlock()
		// A grant may have raced with cancellation.
		select {
		case r := <-ch:
			if r.stream != nil {
				r.stream.Close()
			}
		default:
		}
		return nil, fmt.Errorf("%w: %w", ErrDenied, ctx.Err())
	}
}

// Grant answers the pending request for id with s. It reports false if no
// request was pending; the caller then still owns s.
func (g *Gate) Grant(id string, s Stream) bool {
	return g.answer(id, grant{stream: s})
}

// Deny refuses the pending request for id.
func (g *Gate) Deny(id string) bool {
	return g.answer(id, grant{err: fmt.Errorf("%w: permission refused", ErrDenied)})
}

// Pending returns the number of unanswered requests.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Close denies every pending request.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, ch := range g.pending {
		ch <- grant{err: fmt.Errorf("%w: closed", ErrDenied)}
		delete(g.pending, id)
	}
	return nil
}

func (g *Gate) answer(id string, r grant) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[id]
	if !ok {
		return false
	}
	delete(g.pending, id)
	ch <- r
	return true
}

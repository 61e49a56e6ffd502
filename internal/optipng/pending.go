package optipng

import (
	"context"
	"sync"
)

// Pending is the handle for an optimize call started with Start.
// It resolves exactly once.
type Pending struct {
	once   sync.Once
	done   chan struct{}
	result *Result
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolve records the outcome. Only the first call has any effect.
func (p *Pending) resolve(result *Result, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// Done returns a channel that is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call completes and returns its outcome.
// Repeated calls return the same values.
func (p *Pending) Wait() (*Result, error) {
	<-p.done
	return p.result, p.err
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() if ctx ends first;
// the underlying call keeps running and can still be waited on.
func (p *Pending) WaitContext(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

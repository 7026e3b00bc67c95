package cache

import (
	"context"
	"sync"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Result is the settled outcome of an in-flight request.
type Result struct {
	Data jsonvalue.Value
	Err  error
}

// Promise is a single-assignment result shared by every caller waiting on
// the same request.
type Promise struct {
	done   chan struct{}
	once   sync.Once
	result Result
}

// NewPromise returns an unsettled promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve settles the promise. Only the first call has an effect.
func (p *Promise) Resolve(r Result) {
	p.once.Do(func() {
		p.result = r
		close(p.done)
	})
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether Resolve has been called.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the promise settles or ctx ends.
func (p *Promise) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

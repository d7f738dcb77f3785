package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("worker stopped")

// request represents a unit of work to be executed on a worker goroutine.
type request struct {
	fn   func() (any, error)
	done chan result
}

// result holds the return value from a request.
type result struct {
	value any
	err   error
}

// Worker runs compilations and program executions on a fixed set of
// goroutines. It bounds how many machines run at once and turns panics
// into errors so a bad request cannot take the server down.
type Worker struct {
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a Worker with n goroutines and starts them.
func NewWorker(n int) *Worker {
	if n < 1 {
		n = 1
	}
	w := &Worker{
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	w.wg.Add(n)
	for range n {
		go w.loop()
	}
	return w
}

// loop processes requests sequentially on one goroutine.
func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function, recovering from panics.
func (w *Worker) execute(fn func() (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn()
	return result{value: v, err: err}
}

// Do submits a function for execution on a worker goroutine and blocks
// until it completes or ctx is done.
func (w *Worker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutines and waits for them to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	w.wg.Wait()
}

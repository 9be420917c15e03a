// Package workers provides a fixed-size pool that bounds concurrent
// heavyweight operations such as downloads and media probes.
package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/Hommy-master/capcut-mate-data/utils"
)

// ErrPoolClosed is returned by Do after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs submitted functions on a fixed set of goroutines.
type Pool struct {
	size   int
	tasks  chan task
	closed chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type task struct {
	fn   func()
	done chan struct{}
}

// New starts a pool with the given number of workers. Sizes below one are
// raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		tasks:  make(chan task),
		closed: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	utils.LogInfo("Worker pool started", "workers", size)
	return p
}

// Size reports the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn on a pool worker and waits for it to finish. It returns the
// context error when ctx expires before a worker picks the task up or while
// waiting for completion; in the latter case fn keeps running, so callers
// should hand it context-aware work.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrPoolClosed
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for running tasks to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			t.fn()
			close(t.done)
		case <-p.closed:
			return
		}
	}
}

// Package worker runs blocking toolchain work on a fixed set of goroutines so
// a hung compilation never stalls the request that is dispatching others.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned for work submitted after the pool stopped.
var ErrPoolClosed = errors.New("worker: pool closed")

// ErrTaskPanicked is returned by Do when the task panicked.
var ErrTaskPanicked = errors.New("worker: task panicked")

// Task is one unit of work. It receives the submitter's context.
type Task func(ctx context.Context)

type envelope struct {
	ctx  context.Context
	task Task
}

// Pool executes submitted tasks on concurrency goroutines.
type Pool struct {
	queue       chan envelope
	concurrency int
	logger      *zap.Logger

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New returns a pool with the given concurrency and queue capacity. Start
// must be called before work is picked up.
func New(concurrency, queueSize int, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:       make(chan envelope, queueSize),
		concurrency: concurrency,
		logger:      logger.Named("worker"),
		done:        make(chan struct{}),
	}
}

// Start spawns the worker goroutines and blocks until ctx is cancelled,
// then waits for in-flight tasks to finish.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	<-ctx.Done()
	p.wg.Wait()
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-p.queue:
			p.run(id, env)
		}
	}
}

func (p *Pool) run(id int, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	if env.ctx.Err() != nil {
		return
	}
	env.task(env.ctx)
}

// Submit queues task. It blocks while the queue is full and returns early if
// ctx is done or the pool stopped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.queue <- envelope{ctx: ctx, task: task}:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the pool and waits for its result. A panic in fn is
// reported as ErrTaskPanicked.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) T) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	done := make(chan result, 1)
	task := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
				panic(r)
			}
		}()
		done <- result{v: fn(ctx)}
	}
	if err := p.Submit(ctx, task); err != nil {
		return zero, err
	}
	select {
	case r := <-done:
		return r.v, r.err
	case <-p.done:
		// The task may have finished just before the pool stopped.
		select {
		case r := <-done:
			return r.v, r.err
		default:
			return zero, ErrPoolClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

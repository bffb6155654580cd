// internal/pool/pool.go
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoWorkers is returned when a pool is built with fewer than one worker.
	ErrNoWorkers = errors.New("pool needs at least one worker")
	// ErrClosed is returned by Submit once Shutdown has started.
	ErrClosed = errors.New("pool is shut down")
)

// Job is a unit of work. ctx is the pool's context and is cancelled when the server stops.
type Job func(ctx context.Context)

// Pool runs submitted jobs on a fixed number of workers. Jobs wait in an
// unbounded FIFO queue until a worker is free, so at most Size jobs run at once.
type Pool struct {
	size int
	ctx  context.Context
	log  logrus.FieldLogger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool

	grp *errgroup.Group
}

// New starts size workers. Each worker pulls jobs until the pool is shut down and the queue is empty.
func New(ctx context.Context, size int, log logrus.FieldLogger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, size)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pool{
		size: size,
		ctx:  ctx,
		log:  log.WithField("component", "pool"),
		grp:  new(errgroup.Group),
	}
	p.cond = sync.NewCond(&p.mu)

	for id := 0; id < size; id++ {
		id := id
		p.grp.Go(func() error {
			p.work(id)
			return nil
		})
	}
	p.log.Infof("Started %d workers.", size)
	return p, nil
}

// Size is the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues job. It never blocks on the job itself.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Pending is the number of queued jobs no worker has picked up yet.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops accepting jobs, lets the workers finish everything already queued and waits for them.
// Calling it more than once is fine.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.log.Infof("Shutting down, %d job(s) still queued.", len(p.queue))
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	_ = p.grp.Wait()
	p.log.Info("All workers stopped.")
}

func (p *Pool) work(id int) {
	log := p.log.WithField("worker", id)
	for {
		job, ok := p.next()
		if !ok {
			log.Debug("Worker exiting.")
			return
		}
		p.run(log, job)
	}
}

// next blocks until a job is available. It reports false once the pool is closed and drained.
func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

// run executes job, keeping the worker alive if it panics.
func (p *Pool) run(log logrus.FieldLogger, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	job(p.ctx)
}

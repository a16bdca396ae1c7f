// Package pool provides the bounded-concurrency scheduler that executes file
// transfers. At most `workers` tasks run in parallel; excess submissions
// queue until a slot frees. The pool is the single owner of worker lifecycle:
// no task outlives Shutdown.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/killerciao/CoomerDLEnhanced/utils"
)

const queueDepth = 1024

type Pool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
	draining atomic.Bool
}

func New(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{
		tasks: make(chan func(), queueDepth),
		quit:  make(chan struct{}),
	}
	log := utils.GetLogger("pool")
	log.Debug().Int("workers", workers).Msg("Starting worker pool")
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			// A task pulled off the queue after an abort must not start.
			select {
			case <-p.quit:
				return
			default:
			}
			task()
		}
	}
}

// Submit queues a task for execution. Returns false once the pool has been
// shut down or is draining; the task is dropped in that case.
func (p *Pool) Submit(task func()) bool {
	if p.draining.Load() {
		return false
	}
	select {
	case <-p.quit:
		return false
	case p.tasks <- task:
		return true
	}
}

// Shutdown stops the pool. With wait=false it returns immediately and
// prevents any queued-but-not-started task from running; in-flight tasks are
// expected to observe the session cancel flag and bail on their own. With
// wait=true it drains the queue and blocks until every task has finished.
func (p *Pool) Shutdown(wait bool) {
	if wait {
		p.Drain()
		return
	}
	p.quitOnce.Do(func() {
		close(p.quit)
	})
}

// Drain closes intake and blocks until all queued tasks have run. Call only
// from the goroutine that submits tasks.
func (p *Pool) Drain() {
	if p.draining.CompareAndSwap(false, true) {
		close(p.tasks)
	}
	p.wg.Wait()
}

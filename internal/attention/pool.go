package attention

import "sync"

type headTask struct {
	job    *job
	lo, hi int
	done   chan struct{}
}

// pool runs head ranges on long-lived workers. Each worker owns a score
// buffer sized to the mask capacity, so concurrent jobs never share scratch.
type pool struct {
	size      int
	tasks     chan headTask
	doneSlots chan chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newPool(workers, capacity int) *pool {
	if workers < 1 {
		workers = 1
	}
	p := &pool{
		size:      workers,
		tasks:     make(chan headTask, workers*2),
		doneSlots: make(chan chan struct{}, workers),
	}
	for range workers {
		p.doneSlots <- make(chan struct{}, workers)
	}
	for range workers {
		go func() {
			scores := make([]float32, capacity)
			for task := range p.tasks {
				task.job.runHeads(scores, task.lo, task.hi)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

// run executes heads [0, n) of j, splitting them across the workers. It
// falls back to the calling goroutine when the pool is closed or when there
// is nothing to split.
func (p *pool) run(j *job, n int) {
	if n == 0 {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.size <= 1 || n == 1 {
		j.runHeads(make([]float32, j.mask.Size()), 0, n)
		return
	}

	workers := min(p.size, n)
	chunk := (n + workers - 1) / workers
	done := <-p.doneSlots
	active := 0
	for i := range workers {
		lo := i * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		active++
		p.tasks <- headTask{job: j, lo: lo, hi: hi, done: done}
	}
	for range active {
		<-done
	}
	p.doneSlots <- done
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}

package executor

import (
	"runtime"
	"sync"

	"github.com/edwingeng/deque"
	"github.com/tevino/abool/v2"
)

// Pool runs submitted jobs on a fixed set of workers, in submission order.
type Pool struct {
	size_   int
	mu_     sync.Mutex
	cond_   *sync.Cond
	queue_  deque.Deque // <func()>
	closed_ *abool.AtomicBool
	wg_     sync.WaitGroup

	// slots_ caps the number of subprocesses running at once.
	slots_ chan struct{}
}

// GuessParallelism returns the worker count used when -j is not given.
func GuessParallelism() int {
	switch processors := runtime.NumCPU(); processors {
	case 0, 1:
		return 2
	case 2:
		return 3
	default:
		return processors + 2
	}
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ret := &Pool{
		size_:   workers,
		queue_:  deque.NewDeque(),
		closed_: abool.NewBool(false),
		slots_:  make(chan struct{}, workers),
	}
	ret.cond_ = sync.NewCond(&ret.mu_)
	ret.wg_.Add(workers)
	for i := 0; i < workers; i++ {
		go ret.worker()
	}
	return ret
}

func (this *Pool) Size() int { return this.size_ }

func (this *Pool) submit(job func()) {
	this.mu_.Lock()
	defer this.mu_.Unlock()
	if this.closed_.IsSet() {
		panic("executor: submit on a joined pool")
	}
	this.queue_.PushBack(job)
	this.cond_.Signal()
}

func (this *Pool) worker() {
	defer this.wg_.Done()
	for {
		this.mu_.Lock()
		for this.queue_.Empty() && !this.closed_.IsSet() {
			this.cond_.Wait()
		}
		if this.queue_.Empty() {
			this.mu_.Unlock()
			return
		}
		job := this.queue_.PopFront().(func())
		this.mu_.Unlock()
		job()
	}
}

// Join waits for every queued and running job to finish and stops the
// workers. The pool cannot be used afterwards.
func (this *Pool) Join() {
	this.mu_.Lock()
	this.closed_.Set()
	this.cond_.Broadcast()
	this.mu_.Unlock()
	this.wg_.Wait()
}

package executor

import "fmt"

// Task is the handle of a job submitted with Execute.
type Task[T any] struct {
	done_     chan struct{}
	value_    T
	panicked_ bool
	panic_    interface{}
}

// Execute submits fn to the pool and returns immediately.
func Execute[T any](p *Pool, fn func() T) *Task[T] {
	t := &Task[T]{done_: make(chan struct{})}
	p.submit(func() {
		defer close(t.done_)
		defer func() {
			if r := recover(); r != nil {
				t.panicked_ = true
				t.panic_ = r
			}
		}()
		t.value_ = fn()
	})
	return t
}

// Wait blocks until the job has finished and returns its value. A panic in
// the job is re-raised here.
func (t *Task[T]) Wait() T {
	<-t.done_
	if t.panicked_ {
		panic(fmt.Sprintf("task panicked: %v", t.panic_))
	}
	return t.value_
}

// Done reports whether the job has finished.
func (t *Task[T]) Done() bool {
	select {
	case <-t.done_:
		return true
	default:
		return false
	}
}

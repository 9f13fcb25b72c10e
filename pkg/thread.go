package pkg

import (
	"runtime"
	"sync"
)

// interpreterThread runs every runtime call on a single OS thread. CPython
// binds its thread state to the OS thread that initialized it, while
// goroutines migrate between threads freely.
type interpreterThread struct {
	calls    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func newInterpreterThread() *interpreterThread {
	t := &interpreterThread{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *interpreterThread) loop() {
	// never unlocked: the OS thread is discarded together with the goroutine
	runtime.LockOSThread()
	for {
		select {
		case f := <-t.calls:
			f()
		case <-t.done:
			return
		}
	}
}

// call runs f on the interpreter thread and blocks until it returns. A panic
// inside f is re-raised in the caller.
func (t *interpreterThread) call(f func() error) error {
	var err error
	var panicked interface{}
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		defer func() {
			panicked = recover()
		}()
		err = f()
	}

	select {
	case t.calls <- job:
	case <-t.done:
		return ErrClosed
	}
	<-finished

	if panicked != nil {
		panic(panicked)
	}
	return err
}

func (t *interpreterThread) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

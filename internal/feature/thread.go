package feature

import "sync"

// Thread runs submitted tasks one at a time, in submission order, on a
// dedicated goroutine.
type Thread struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewThread starts an idle thread.
func NewThread(name string) *Thread {
	t := &Thread{name: name, done: make(chan struct{})}
	t.cond = sync.NewCond(&t.mu)
	go t.loop()
	return t
}

func (t *Thread) Name() string {
	return t.name
}

// Execute queues task. It returns false once the thread is shut down.
func (t *Thread) Execute(task func()) bool {
	if task == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.queue = append(t.queue, task)
	t.cond.Signal()
	return true
}

// Pending reports how many tasks are waiting.
func (t *Thread) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Shutdown stops accepting tasks, runs what is already queued and waits for
// the goroutine to exit.
func (t *Thread) Shutdown() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		t.cond.Broadcast()
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Thread) loop() {
	defer close(t.done)
	for {
		t.mu.Lock()
		for len(t.queue) == 0 && !t.closed {
			t.cond.Wait()
		}
		if len(t.queue) == 0 {
			t.mu.Unlock()
			return
		}
		task := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()
		task()
	}
}

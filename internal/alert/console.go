package alert

import (
	"log"
	"sync"
)

// ConsoleDispatcher logs alerts instead of mailing them. Development backend.
type ConsoleDispatcher struct{}

var _ Dispatcher = (*ConsoleDispatcher)(nil)

// NewConsoleDispatcher creates the console dispatcher.
func NewConsoleDispatcher() *ConsoleDispatcher {
	return &ConsoleDispatcher{}
}

// Enqueue logs the alert from a detached goroutine.
func (d *ConsoleDispatcher) Enqueue(task Task) {
	go func() {
		log.Printf("[Alert] %s: occupancy %d exceeds capacity %d", task.Subject(), task.Occupancy, task.Capacity)
	}()
}

// RecorderDispatcher records enqueued tasks synchronously for tests.
type RecorderDispatcher struct {
	mu    sync.Mutex
	tasks []Task
}

var _ Dispatcher = (*RecorderDispatcher)(nil)

// NewRecorderDispatcher creates the recording dispatcher.
func NewRecorderDispatcher() *RecorderDispatcher {
	return &RecorderDispatcher{}
}

// Enqueue records the task.
func (d *RecorderDispatcher) Enqueue(task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
}

// Tasks returns a copy of the recorded tasks.
func (d *RecorderDispatcher) Tasks() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Task, len(d.tasks))
	copy(out, d.tasks)
	return out
}

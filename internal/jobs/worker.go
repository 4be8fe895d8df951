package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one unit of periodic background work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task on a fixed interval until stopped. A panicking run is
// logged and the loop continues.
type Worker struct {
	name     string
	task     Task
	interval time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  sync.Once
}

// NewWorker creates a worker. name prefixes its log lines.
func NewWorker(name string, task Task, interval time.Duration) *Worker {
	return &Worker{
		name:     name,
		task:     task,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the loop and blocks until ctx is cancelled or Stop is called.
// Only the first call runs the loop.
func (w *Worker) Start(ctx context.Context) {
	w.started.Do(func() { w.loop(ctx) })
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneChan)

	if w.interval <= 0 {
		log.Printf("%s worker disabled: interval %v", w.name, w.interval)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("%s worker started with interval: %v", w.name, w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s worker: run panicked: %v", w.name, r)
		}
	}()
	if err := w.task.Run(ctx); err != nil {
		log.Printf("%s worker: run failed: %v", w.name, err)
	}
}

// Stop signals the loop to exit and waits for it. It must only be called
// after Start; repeated calls are no-ops.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.doneChan
}

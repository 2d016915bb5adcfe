// Package taskdispatcher runs a server's periodic background work —
// liveness heartbeats to the name service, cache/bitmap sync sweeps — as
// independent cooperative tasks. Per §5 these are advisory only: a task
// failing or running late never cancels or delays in-flight client
// requests, which live entirely inside their own server's event loop.
package taskdispatcher

import (
	"context"
	"time"

	"github.com/nanvix/multikernel-sub000/internal/logx"
	"golang.org/x/sync/errgroup"
)

// / Task_t is one periodic job: Run fires every Interval until ctx is
// / canceled.
type Task_t struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// / Dispatcher_t holds a set of registered periodic tasks.
type Dispatcher_t struct {
	tasks []Task_t
	log   *logx.Logger
}

// / New creates an empty dispatcher.
func New() *Dispatcher_t {
	return &Dispatcher_t{log: logx.New("taskdispatcher")}
}

// / Register adds t to the set of tasks run by a subsequent Run.
func (d *Dispatcher_t) Register(t Task_t) {
	d.tasks = append(d.tasks, t)
}

// / Run starts every registered task concurrently and blocks until ctx is
// / canceled, then returns nil. A task whose Run call
// / returns an error is logged and retried on its next tick rather than
// / aborting the whole dispatcher.
func (d *Dispatcher_t) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range d.tasks {
		task := task
		g.Go(func() error {
			ticker := time.NewTicker(task.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := task.Run(gctx); err != nil {
						d.log.Warnf("task %s: %v", task.Name, err)
					}
				}
			}
		})
	}

	return g.Wait()
}

package taskdispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTasksRunUntilCancel(t *testing.T) {
	d := New()
	var ticks int64
	d.Register(Task_t{
		Name:     "heartbeat",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&ticks, 1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&ticks), int64(3))
}

func TestFailingTaskDoesNotAbortDispatcher(t *testing.T) {
	d := New()
	var ok, failing int64
	d.Register(Task_t{
		Name:     "failing",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&failing, 1)
			return assert.AnError
		},
	})
	d.Register(Task_t{
		Name:     "ok",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&ok, 1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&failing), int64(3))
	assert.GreaterOrEqual(t, atomic.LoadInt64(&ok), int64(3))
}

// Package pool provides a bounded-concurrency scheduler for independent
// asynchronous tasks.
//
// Run executes an ordered list of task factories with at most a fixed number
// in flight at any instant, preserving each task's result at its original
// index regardless of completion order. It is the single place bounding how
// many seat executions overlap; changing the limit only changes I/O overlap,
// never result ordering.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Task is a zero-argument asynchronous task factory producing one result.
type Task[T any] func(ctx context.Context) (T, error)

// Run executes tasks with at most limit running concurrently and returns the
// results in task order. A limit below 1 is treated as 1.
//
// Workers share a cursor over task indices: min(limit, len(tasks)) workers
// each claim the next unclaimed index, await it and store its result until
// the cursor is exhausted. No result is lost or duplicated.
//
// If any task returns an error it propagates to the caller (the first one
// observed); task-level isolation must happen inside the task itself.
func Run[T any](ctx context.Context, limit int, tasks []Task[T]) ([]T, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(tasks) {
		limit = len(tasks)
	}

	results := make([]T, len(tasks))

	var (
		cursor  atomic.Int64
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	cursor.Store(-1)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1))
				if i >= len(tasks) {
					return
				}
				res, err := tasks[i](ctx)
				if err != nil {
					errOnce.Do(func() {
						runErr = fmt.Errorf("task %d failed: %w", i, err)
					})
					return
				}
				results[i] = res
			}
		}()
	}

	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return results, nil
}

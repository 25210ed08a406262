package worker

import (
	"context"
	"sync"
)

// Map runs fn over every item with at most workers goroutines in
// flight, pulling from a shared queue until it drains. Results keep
// the input ordering; completion order across items is unspecified.
// A canceled context stops feeding the queue; items already picked up
// still run to completion with the canceled context.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := range items {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = fn(ctx, items[i])
			}
		}()
	}
	wg.Wait()

	return results
}

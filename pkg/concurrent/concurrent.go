package concurrent

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simforge/simforge/pkg/sequence"
)

// ForEach runs action for every element of the iterator, each in its own
// goroutine, and waits for all of them. The first error encountered is
// returned; the remaining goroutines still run to completion.
func ForEach[T any](i *sequence.Iterator[T], action func(T) error) error {
	var eg errgroup.Group
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}
		eg.Go(func() error {
			return action(value)
		})
	}
	return eg.Wait()
}

// Map applies mapFn to every element in parallel, preserving order. The
// workers parameter bounds the number of goroutines running at once.
func Map[T any, R any](i *sequence.Iterator[T], workers int, mapFn func(T) R) []R {
	in := i.Collect()
	out := make([]R, len(in))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for idx, val := range in {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer wg.Done()
			out[i] = mapFn(v)
			<-sem
		}(idx, val)
	}
	wg.Wait()
	return out
}

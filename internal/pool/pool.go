// Package pool provides the bounded worker pool tasks are executed on.
package pool

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the reference number of concurrent workers.
const DefaultSize = 8

// Task is a unit of work run on the pool.
type Task func() error

// Pool runs tasks with at most Size of them in flight. Excess tasks wait for
// a free worker. A failing task never cancels its siblings.
type Pool struct {
	size int
}

// New creates a pool; sizes <= 0 fall back to DefaultSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Run executes every task and blocks until all are terminal. It returns the
// first failure observed, in completion order. A panicking task is reported
// as a failure.
func (p *Pool) Run(tasks ...Task) error {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		first error
	)
	g.SetLimit(p.size)

	for _, task := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task panicked: %v", r)
				}
				if err != nil {
					mu.Lock()
					if first == nil {
						first = err
					}
					mu.Unlock()
				}
			}()
			return task()
		})
	}

	g.Wait()
	return first
}

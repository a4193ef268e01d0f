/*
Copyright © 2023 the TKEmix authors.
This file is part of TKEmix.

TKEmix is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TKEmix is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TKEmix.  If not, see <http://www.gnu.org/licenses/>.
*/

package device

import (
	"runtime"
	"sync"
)

// Kernel is the body of one execution unit. id is the global index of
// the unit, in [0, unitsPerGroup*groupCount). Kernels must ignore ids past
// the end of their data, because the launch geometry is rounded up to whole
// groups.
type Kernel func(id int)

// Launcher is a kernel launch strategy.
type Launcher interface {
	// Launch runs k once for every unit of groupCount groups of
	// unitsPerGroup units each. Launches issued to the same Launcher
	// complete in the order they were issued. Launch may return before
	// the kernel has finished.
	Launch(unitsPerGroup, groupCount int, k Kernel)

	// Synchronize blocks until every kernel launched so far has finished.
	Synchronize()
}

// Groups returns the number of groups of groupSize units needed to cover n
// units.
func Groups(n, groupSize int) int {
	if n <= 0 || groupSize <= 0 {
		return 0
	}
	return (n + groupSize - 1) / groupSize
}

func runGroup(g, unitsPerGroup int, k Kernel) {
	first := g * unitsPerGroup
	for id := first; id < first+unitsPerGroup; id++ {
		k(id)
	}
}

// Serial runs every group in order on the calling goroutine.
type Serial struct{}

// Launch implements Launcher.
func (Serial) Launch(unitsPerGroup, groupCount int, k Kernel) {
	for g := 0; g < groupCount; g++ {
		runGroup(g, unitsPerGroup, k)
	}
}

// Synchronize implements Launcher.
func (Serial) Synchronize() {}

// Pool runs groups concurrently on Workers goroutines and returns once all
// of them are done. If Workers is < 1, runtime.GOMAXPROCS(0) goroutines
// are used.
type Pool struct {
	Workers int
}

func (p Pool) workers() int {
	if p.Workers < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return p.Workers
}

// Launch implements Launcher.
func (p Pool) Launch(unitsPerGroup, groupCount int, k Kernel) {
	nprocs := p.workers()
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for g := pp; g < groupCount; g += nprocs {
				runGroup(g, unitsPerGroup, k)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// Synchronize implements Launcher.
func (Pool) Synchronize() {}

type launch struct {
	unitsPerGroup, groupCount int
	k                         Kernel
}

// Async is a stream: Launch queues the kernel and returns immediately,
// queued kernels run one after another, each on a Pool, and Synchronize
// waits for the queue to drain. Close must be called to release the
// stream goroutine; launches after Close run synchronously on the pool.
type Async struct {
	pool  Pool
	queue chan launch
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.Mutex
	closed bool
}

// NewAsync returns a stream whose kernels run on the given number of
// worker goroutines.
func NewAsync(workers int) *Async {
	a := &Async{
		pool:  Pool{Workers: workers},
		queue: make(chan launch, 64),
	}
	go func() {
		for l := range a.queue {
			a.pool.Launch(l.unitsPerGroup, l.groupCount, l.k)
			a.wg.Done()
		}
	}()
	return a
}

// Launch implements Launcher.
func (a *Async) Launch(unitsPerGroup, groupCount int, k Kernel) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.pool.Launch(unitsPerGroup, groupCount, k)
		return
	}
	a.wg.Add(1)
	a.queue <- launch{unitsPerGroup: unitsPerGroup, groupCount: groupCount, k: k}
	a.mu.Unlock()
}

// Synchronize implements Launcher.
func (a *Async) Synchronize() { a.wg.Wait() }

// Close waits for queued kernels and stops the stream.
func (a *Async) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		a.Synchronize()
		close(a.queue)
	})
}

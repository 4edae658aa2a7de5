package tensor

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// workers controls goroutine parallelism for matrix kernels such as the
// convolution channel loops. A value of 1 disables parallel execution.
var workers atomic.Int32

func init() {
	workers.Store(int32(runtime.GOMAXPROCS(0)))
}

// SetWorkers sets the maximum number of goroutines used by math kernels.
// n < 1 resets to one worker per available CPU; n == 1 disables kernel
// parallelism.
func SetWorkers(n int) {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}

	workers.Store(int32(min(n, 1<<20)))
}

// Workers reports the configured worker count.
func Workers() int {
	n := int(workers.Load())
	if n < 1 {
		return 1
	}

	return n
}

// ParallelFor splits [0, n) into contiguous chunks and runs fn on each,
// using at most the configured worker count.
func ParallelFor(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}

	maxWorkers := Workers()
	if maxWorkers <= 1 || n == 1 {
		fn(0, n)
		return
	}

	if maxWorkers > n {
		maxWorkers = n
	}

	chunk := (n + maxWorkers - 1) / maxWorkers

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}

	wg.Wait()
}

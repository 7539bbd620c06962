package orchestrator

import (
	"runtime"

	"github.com/pbnjay/memory"
)

// defaultWorkerCount sizes the island-dispatch pool from the number of CPUs
// and a conservative share of system memory.
func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	totalMiB := memory.TotalMemory() / 1024 / 1024
	// Budget ~256MiB of per-island scratch per worker, using up to 70% of
	// system memory.
	byMemory := int((totalMiB * 7 / 10) / 256)
	if byMemory < 1 {
		byMemory = 1
	}
	if byMemory < n {
		return byMemory
	}
	return n
}

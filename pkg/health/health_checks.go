package health

import (
	"context"
	"runtime"
)

// Pinger is anything whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// SimpleCheck creates a check that always reports healthy
func SimpleCheck(name string) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{Name: name, Status: StatusHealthy}
	}
}

// StoreCheck reports the document store unhealthy when it cannot be pinged
func StoreCheck(store Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Name: "store"}
		if err := store.Ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Reachable"
		}
		return check
	}
}

// LayoutCheck reports the number of running layout sessions. Each session
// costs O(n²) per frame, so more than limit running at once is degraded.
// A limit of zero disables the threshold.
func LayoutCheck(active func() int, limit int) CheckFunc {
	return func(ctx context.Context) Check {
		n := active()
		check := Check{
			Name:    "layout",
			Status:  StatusHealthy,
			Message: "Layout sessions within limit",
			Details: map[string]any{"active_sessions": n},
		}
		if limit > 0 {
			check.Details["limit"] = limit
			if n > limit {
				check.Status = StatusDegraded
				check.Message = "Too many concurrent layout sessions"
			}
		}
		return check
	}
}

// MemoryCheck reports degraded when the heap takes most of the memory
// obtained from the OS
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()
		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		if sys > 0 && float64(alloc)/float64(sys)*100 > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}
		return check
	}
}

// RuntimeMemory reads heap usage from the Go runtime
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc, m.Sys
}

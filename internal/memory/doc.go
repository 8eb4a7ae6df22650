// Package memory keeps thumbnail generation inside the container's memory
// budget.
//
// [ApplyLimit] derives GOMEMLIMIT from the container limit passed through
// the Kubernetes Downward API:
//
//   - GOMEMLIMIT: used as is when set.
//   - MEMORY_LIMIT: container limit in bytes.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.80).
//     Decoded images live on the Go heap, while libvips and ffmpeg allocate
//     outside it, so the remainder must cover both.
//
// [Monitor] samples heap usage and holds new generations back while usage
// is above the critical water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
package memory

package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride pins the worker count regardless of the workload kind.
const EnvOverride = "THUMBNAIL_WORKERS"

// Kind classifies a workload by where it spends its time.
type Kind int

const (
	// CPU is decoding, resizing and encoding: one worker per CPU.
	CPU Kind = iota
	// IO is waiting on the object store or the disk: two per CPU.
	IO
	// Mixed fetches an original and then renders it: one and a half per CPU.
	Mixed
)

func (k Kind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case IO:
		return "io"
	case Mixed:
		return "mixed"
	default:
		return "unknown"
	}
}

func (k Kind) multiplier() float64 {
	switch k {
	case IO:
		return 2.0
	case Mixed:
		return 1.5
	default:
		return 1.0
	}
}

// For returns how many workers to run for kind. GOMAXPROCS follows the
// container CPU quota, so the result respects it. limit caps the count; 0
// means no cap. THUMBNAIL_WORKERS overrides the computed value but not the
// cap.
func For(kind Kind, limit int) int {
	return count(kind.multiplier(), limit, os.Getenv(EnvOverride), runtime.GOMAXPROCS(0))
}

func count(multiplier float64, limit int, override string, procs int) int {
	n := int(float64(procs) * multiplier)
	if v, err := strconv.Atoi(override); err == nil && v > 0 {
		n = v
	}
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

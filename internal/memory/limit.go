package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"seafile-thumbnail/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap when MEMORY_RATIO is unset.
const DefaultMemoryRatio = 0.80

// Limit sources.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// Limit describes the heap limit in effect after ApplyLimit.
type Limit struct {
	Source    string
	Container int64
	Heap      int64
	Ratio     float64
}

// Configured reports whether a heap limit is in effect.
func (l Limit) Configured() bool {
	return l.Heap > 0
}

// ApplyLimit sets the runtime memory limit from the environment read
// through getenv. It must run before large allocations.
func ApplyLimit(getenv func(string) string) Limit {
	if v := getenv("GOMEMLIMIT"); v != "" {
		// The runtime has already parsed GOMEMLIMIT.
		limit := debug.SetMemoryLimit(-1)
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		if limit <= 0 || limit == math.MaxInt64 {
			return Limit{Source: SourceGoMemLimit}
		}
		return Limit{Source: SourceGoMemLimit, Heap: limit}
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured")
		return Limit{Source: SourceNone}
	}

	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(heap), ratio*100, FormatBytes(container))

	return Limit{
		Source:    SourceMemoryLimit,
		Container: container,
		Heap:      heap,
		Ratio:     ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// FormatBytes renders b with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

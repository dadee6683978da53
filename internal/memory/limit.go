package memory

import (
	"math"
	"os"
	"runtime/debug"

	"github.com/dustin/go-humanize"

	"audio-compressor/internal/logging"
)

// Sources reported in Result.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// Result describes what ApplyLimit did.
type Result struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// setMemoryLimit is swapped in tests so they do not change the runtime limit.
var setMemoryLimit = debug.SetMemoryLimit

// ApplyLimit sets the Go memory limit to ratio of containerLimit. It does
// nothing when GOMEMLIMIT is set in the environment or containerLimit is not
// positive. Call it early in main, before large allocations.
func ApplyLimit(containerLimit int64, ratio float64) Result {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := Result{Source: SourceGoMemLimit}
		if limit := setMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	if containerLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return Result{Source: SourceNone}
	}
	if ratio <= 0 || ratio > 1 {
		logging.Warn("Memory ratio %.2f out of range (0.0-1.0), not setting GOMEMLIMIT", ratio)
		return Result{Source: SourceNone, ContainerLimit: containerLimit}
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	setMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(goMemLimit)),
		ratio*100,
		humanize.IBytes(uint64(containerLimit)),
	)

	return Result{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

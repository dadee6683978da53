package memory

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubLimit records SetMemoryLimit calls instead of changing the runtime.
func stubLimit(t *testing.T, current int64) *[]int64 {
	t.Helper()
	var calls []int64
	orig := setMemoryLimit
	setMemoryLimit = func(limit int64) int64 {
		calls = append(calls, limit)
		if limit < 0 {
			return current
		}
		prev := current
		current = limit
		return prev
	}
	t.Cleanup(func() { setMemoryLimit = orig })
	return &calls
}

func unsetGoMemLimit(t *testing.T) {
	t.Helper()
	orig, had := os.LookupEnv("GOMEMLIMIT")
	_ = os.Unsetenv("GOMEMLIMIT")
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("GOMEMLIMIT", orig)
		}
	})
}

func TestApplyLimitFromContainerLimit(t *testing.T) {
	unsetGoMemLimit(t)
	calls := stubLimit(t, math.MaxInt64)

	result := ApplyLimit(1<<30, 0.5)

	assert.True(t, result.Configured)
	assert.Equal(t, SourceMemoryLimit, result.Source)
	assert.Equal(t, int64(1<<30), result.ContainerLimit)
	assert.Equal(t, int64(1<<29), result.GoMemLimit)
	assert.Equal(t, 0.5, result.Ratio)
	assert.Equal(t, []int64{1 << 29}, *calls)
}

func TestApplyLimitNotSet(t *testing.T) {
	unsetGoMemLimit(t)
	calls := stubLimit(t, math.MaxInt64)

	for _, limit := range []int64{0, -1} {
		result := ApplyLimit(limit, 0.5)
		assert.False(t, result.Configured)
		assert.Equal(t, SourceNone, result.Source)
	}
	assert.Empty(t, *calls)
}

func TestApplyLimitInvalidRatio(t *testing.T) {
	unsetGoMemLimit(t)
	calls := stubLimit(t, math.MaxInt64)

	for _, ratio := range []float64{0, -0.5, 1.5} {
		result := ApplyLimit(1<<30, ratio)
		assert.False(t, result.Configured, "ratio %v", ratio)
		assert.Equal(t, int64(1<<30), result.ContainerLimit)
	}
	assert.Empty(t, *calls)
}

func TestApplyLimitFullRatio(t *testing.T) {
	unsetGoMemLimit(t)
	stubLimit(t, math.MaxInt64)

	result := ApplyLimit(512<<20, 1.0)
	assert.Equal(t, int64(512<<20), result.GoMemLimit)
}

func TestApplyLimitGoMemLimitWins(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "500MiB")
	calls := stubLimit(t, 500<<20)

	result := ApplyLimit(1<<30, 0.5)

	assert.True(t, result.Configured)
	assert.Equal(t, SourceGoMemLimit, result.Source)
	assert.Equal(t, int64(500<<20), result.GoMemLimit)
	assert.Equal(t, []int64{-1}, *calls, "only the current limit should be read")
}

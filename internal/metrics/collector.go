package metrics

import (
	"sync"
	"time"

	"audio-compressor/internal/logging"
)

// orphanWarnAfter is how many consecutive samples must show orphaned scratch
// files before a warning is logged. Files of a request that is between
// allocation and release can look orphaned for one sample.
const orphanWarnAfter = 3

// StatsProvider reports the state of the scratch directory.
type StatsProvider interface {
	GetStats() Stats
}

// Stats is one sample of the scratch directory.
type Stats struct {
	Files   int
	Bytes   int64
	Orphans int // scratch files no in-flight request owns
}

// Collector samples a StatsProvider on an interval and publishes the result
// as gauges. It logs once when orphaned scratch files stick around.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	orphanStreak int
	warned       bool
}

func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples immediately and then every interval until Stop is called.
func (c *Collector) Start() {
	go c.run()
}

// Stop ends sampling and waits for the loop to exit. It is safe to call
// more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.done:
	case <-time.After(c.interval + time.Second):
	}
}

func (c *Collector) run() {
	defer close(c.done)

	c.sample()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.stop:
			return
		}
	}
}

func (c *Collector) sample() {
	if c.provider == nil {
		return
	}

	stats := c.provider.GetStats()
	ScratchDirFiles.Set(float64(stats.Files))
	ScratchDirBytes.Set(float64(stats.Bytes))
	ScratchOrphanFiles.Set(float64(stats.Orphans))

	if stats.Orphans == 0 {
		c.orphanStreak = 0
		c.warned = false
		return
	}

	c.orphanStreak++
	if c.orphanStreak >= orphanWarnAfter && !c.warned {
		logging.Warn("%d scratch files are not owned by any request; they will be purged on restart", stats.Orphans)
		c.warned = true
	}
}

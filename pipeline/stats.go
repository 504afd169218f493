package pipeline

import "time"

// Stats summarises a run.
type Stats struct {
	RunID           string    `json:"run_id"`
	FramesRead      int       `json:"frames_read"`
	FramesProcessed int       `json:"frames_processed"`
	FramesSkipped   int       `json:"frames_skipped"`
	FramesWritten   int       `json:"frames_written"`
	SeenCount       int       `json:"unique_vehicles"`
	Benchmark       Benchmark `json:"benchmark"`
}

// Benchmark reports the slowest, fastest and average time of a frame iteration.
type Benchmark struct {
	Slowest      time.Duration `json:"slowest"`
	Fastest      time.Duration `json:"fastest"`
	Average      time.Duration `json:"average"`
	NumberOfRuns int           `json:"number_of_runs"`
}

// Stats returns a snapshot of the run counters. It may be called while Run is active.
func (c *Controller) Stats() Stats {
	c.statsMu.RLock()
	out := c.stats
	out.Benchmark = benchmark(c.timeStats)
	c.statsMu.RUnlock()
	out.SeenCount = c.deps.Stabilizer.SeenCount()
	return out
}

func (c *Controller) countRead() {
	c.statsMu.Lock()
	c.stats.FramesRead++
	c.statsMu.Unlock()
}

func (c *Controller) countSkipped() {
	c.statsMu.Lock()
	c.stats.FramesSkipped++
	c.statsMu.Unlock()
}

func (c *Controller) recordTiming(took time.Duration) {
	c.statsMu.Lock()
	c.timeStats = append(c.timeStats, took)
	c.statsMu.Unlock()
}

func benchmark(timeStats []time.Duration) Benchmark {
	n := len(timeStats)
	if n == 0 {
		return Benchmark{}
	}
	tmin, tmax := timeStats[0], timeStats[0]
	var sum time.Duration
	for _, tt := range timeStats {
		if tt < tmin {
			tmin = tt
		}
		if tt > tmax {
			tmax = tt
		}
		sum += tt
	}
	return Benchmark{
		Slowest:      tmax,
		Fastest:      tmin,
		Average:      sum / time.Duration(n),
		NumberOfRuns: n,
	}
}

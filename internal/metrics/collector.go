package metrics

import (
	"os"
	"path/filepath"
	"time"

	"seafile-thumbnail/internal/logging"
)

// CacheStats is the on-disk footprint of one size bucket of the thumbnail cache.
type CacheStats struct {
	Size  string
	Bytes int64
	Count int
}

// StatsProvider interface for collecting stats
type StatsProvider interface {
	CacheStats() ([]CacheStats, error)
}

// DirStatsProvider walks a thumbnail root laid out as root/<size>/<file>.
type DirStatsProvider struct {
	Root string
}

// CacheStats returns one entry per size directory under Root.
func (p DirStatsProvider) CacheStats() ([]CacheStats, error) {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		return nil, err
	}

	var stats []CacheStats
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s := CacheStats{Size: entry.Name()}
		files, err := os.ReadDir(filepath.Join(p.Root, entry.Name()))
		if err != nil {
			logging.Warn("failed to read thumbnail dir %s: %v", entry.Name(), err)
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			s.Bytes += info.Size()
			s.Count++
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.CacheStats()
	if err != nil {
		logging.Warn("Failed to collect thumbnail cache stats: %v", err)
		return
	}

	var totalBytes int64
	var totalCount int
	for _, s := range stats {
		ThumbnailCacheSize.WithLabelValues(s.Size).Set(float64(s.Bytes))
		ThumbnailCacheCount.WithLabelValues(s.Size).Set(float64(s.Count))
		totalBytes += s.Bytes
		totalCount += s.Count
	}

	logging.Debug("Metrics collected: thumbnails=%d, bytes=%d, sizes=%d", totalCount, totalBytes, len(stats))
}

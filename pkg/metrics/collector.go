package metrics

import (
	"time"

	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/storage"
)

// raftStats is the subset of *leader.Node's methods the collector needs,
// expressed as an interface so this package doesn't import pkg/leader.
type raftStats interface {
	IsLeader() bool
	LeaderStats() (lastLogIndex, appliedIndex uint64, peers int)
}

// Collector periodically refreshes the gauges that reflect point-in-time
// state (library size, registry population, leadership) rather than
// counters or histograms, which components update inline as they work.
type Collector struct {
	lib   *schedule.Library
	store storage.Store
	raft  raftStats

	stopCh chan struct{}
}

// NewCollector creates a Collector. raft may be nil when running without
// leader election (single-replica deployments).
func NewCollector(lib *schedule.Library, store storage.Store, raft raftStats) *Collector {
	return &Collector{lib: lib, store: store, raft: raft, stopCh: make(chan struct{})}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectLibraryMetrics()
	c.collectRegistryMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectLibraryMetrics() {
	if c.lib == nil {
		return
	}
	SchedulesTotal.Set(float64(len(c.lib.Schedules())))
}

func (c *Collector) collectRegistryMetrics() {
	if c.store == nil {
		return
	}
	records, err := c.store.ListRegistryRecords("", "", "")
	if err != nil {
		return
	}
	counts := make(map[string]map[string]int)
	for _, r := range records {
		if counts[r.Service] == nil {
			counts[r.Service] = make(map[string]int)
		}
		counts[r.Service][string(r.StoredState)]++
	}
	for kind, states := range counts {
		for state, count := range states {
			ResourcesTotal.WithLabelValues(kind, state).Set(float64(count))
		}
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}
	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	lastIndex, appliedIndex, peers := c.raft.LeaderStats()
	RaftLogIndex.Set(float64(lastIndex))
	RaftAppliedIndex.Set(float64(appliedIndex))
	RaftPeers.Set(float64(peers))
}

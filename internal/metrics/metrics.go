package metrics

import "sync/atomic"

// MetricID indexes one counter slot.
type MetricID uint16

const (
	MetricResetRequestAccepted MetricID = iota
	MetricResetRequestLimited
	MetricResetRequestMasked
	MetricResetResolved
	MetricResetResolveIdempotent
	MetricProvisionSuccess
	MetricProvisionRollback
	MetricProvisionEmailCollision
	MetricAuthzClaimGrant
	MetricAuthzRoleGrant
	MetricAuthzDenied
	MetricPasswordChangeCompleted

	MetricIDCount
)

// Config controls metric collection. When Enabled is false every operation
// is a no-op.
type Config struct {
	Enabled bool
}

// Metrics holds the counter slots. Safe for concurrent use.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id], 1)
}

func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id])
}

func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id])
	}
	return snap
}

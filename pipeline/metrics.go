package pipeline

import "sync/atomic"

// Metrics accumulates the filter/dedup counters a single contig worker
// produces (4.F steps 2,5,7,8: total/filtered/annotated/unique), per
// spec.md invariant 1: total >= filtered >= annotated >= unique >= 0.
// Fields are updated with atomic ops so a worker's Metrics can be read
// concurrently while the worker is still running, matching the
// classify package's Counters discipline (spec.md §5).
type Metrics struct {
	Total     int64
	Filtered  int64
	Annotated int64
	Unique    int64
	Duplicate int64
}

func (m *Metrics) incTotal()     { atomic.AddInt64(&m.Total, 1) }
func (m *Metrics) incFiltered()  { atomic.AddInt64(&m.Filtered, 1) }
func (m *Metrics) incAnnotated() { atomic.AddInt64(&m.Annotated, 1) }
func (m *Metrics) incUnique()    { atomic.AddInt64(&m.Unique, 1) }
func (m *Metrics) incDuplicate() { atomic.AddInt64(&m.Duplicate, 1) }

// Snapshot returns a copy safe to read without racing further updates.
func (m *Metrics) Snapshot() Metrics {
	return Metrics{
		Total:     atomic.LoadInt64(&m.Total),
		Filtered:  atomic.LoadInt64(&m.Filtered),
		Annotated: atomic.LoadInt64(&m.Annotated),
		Unique:    atomic.LoadInt64(&m.Unique),
		Duplicate: atomic.LoadInt64(&m.Duplicate),
	}
}

// Add merges other into m, field by field. Commutative, per spec.md
// §5 ("Metrics aggregation is order-independent").
func (m *Metrics) Add(other Metrics) {
	atomic.AddInt64(&m.Total, other.Total)
	atomic.AddInt64(&m.Filtered, other.Filtered)
	atomic.AddInt64(&m.Annotated, other.Annotated)
	atomic.AddInt64(&m.Unique, other.Unique)
	atomic.AddInt64(&m.Duplicate, other.Duplicate)
}

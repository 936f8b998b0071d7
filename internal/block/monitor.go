package block

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// ErrOutOfMemory is returned when a reservation would exceed the budget.
var ErrOutOfMemory = errors.New("resource limit exceeded")

// ResourceMonitor is the memory budget shared by every execution block of a
// process. A limit of zero means unlimited.
type ResourceMonitor struct {
	limit   int64
	current atomic.Int64
	peak    atomic.Int64
}

// NewResourceMonitor creates a monitor with the given byte limit.
func NewResourceMonitor(limit int64) *ResourceMonitor {
	return &ResourceMonitor{limit: limit}
}

// Reserve charges n bytes against the budget. On failure the counter is
// left untouched.
func (m *ResourceMonitor) Reserve(n int64) error {
	for {
		cur := m.current.Load()
		next := cur + n
		if m.limit > 0 && next > m.limit {
			return errors.Wrapf(ErrOutOfMemory, "reserving %s with %s of %s in use",
				humanize.IBytes(uint64(n)), humanize.IBytes(uint64(cur)), humanize.IBytes(uint64(m.limit)))
		}
		if m.current.CompareAndSwap(cur, next) {
			m.raisePeak(next)
			return nil
		}
	}
}

// Release returns n bytes to the budget.
func (m *ResourceMonitor) Release(n int64) {
	if m.current.Add(-n) < 0 {
		panic(errors.AssertionFailedf("released %d bytes more than reserved", n))
	}
}

// Current returns the number of bytes in use.
func (m *ResourceMonitor) Current() int64 { return m.current.Load() }

// Peak returns the high-water mark.
func (m *ResourceMonitor) Peak() int64 { return m.peak.Load() }

// Limit returns the configured byte limit.
func (m *ResourceMonitor) Limit() int64 { return m.limit }

func (m *ResourceMonitor) raisePeak(v int64) {
	for {
		p := m.peak.Load()
		if v <= p || m.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

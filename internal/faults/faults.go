// Package faults is a debug hook that lets tests force selected call sites
// to fail. A nil or empty Registry never alters behavior.
package faults

import (
	"github.com/cockroachdb/errors"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sasha-s/go-deadlock"
)

// ErrDebug is the error returned from an enabled fault point.
var ErrDebug = errors.New("intentional debug error")

// Registry holds the set of enabled fault points.
type Registry struct {
	mu     deadlock.Mutex
	points mapset.Set[string]
}

// NewRegistry creates a registry with no fault points enabled.
func NewRegistry() *Registry {
	return &Registry{points: mapset.NewThreadUnsafeSet[string]()}
}

// Enable arms a fault point.
func (r *Registry) Enable(point string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points.Add(point)
}

// Disable disarms a fault point.
func (r *Registry) Disable(point string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points.Remove(point)
}

// ClearAll disarms every fault point.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points.Clear()
}

// Enabled reports whether point is armed.
func (r *Registry) Enabled(point string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points.Contains(point)
}

// Check returns an error wrapping ErrDebug if point is armed.
func (r *Registry) Check(point string) error {
	if !r.Enabled(point) {
		return nil
	}
	return errors.Wrapf(ErrDebug, "fault point %s", point)
}

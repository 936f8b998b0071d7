package exec

import (
	"maps"

	"github.com/sasha-s/go-deadlock"

	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// StatsSink receives the statistics of every executor call and every pull.
type StatsSink interface {
	AddStats(kind string, s executor.Stats)
	ObservePull(kind string, state types.ExecutionState, rows int)
}

// Statistics accumulates query-level totals in memory.
type Statistics struct {
	mu     deadlock.Mutex
	total  executor.Stats
	byKind map[string]executor.Stats
	pulls  map[string]int64
	rows   map[string]int64
}

// NewStatistics creates an empty accumulator.
func NewStatistics() *Statistics {
	return &Statistics{
		byKind: make(map[string]executor.Stats),
		pulls:  make(map[string]int64),
		rows:   make(map[string]int64),
	}
}

// AddStats implements StatsSink.
func (s *Statistics) AddStats(kind string, st executor.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total.Add(st)
	k := s.byKind[kind]
	k.Add(st)
	s.byKind[kind] = k
}

// ObservePull implements StatsSink.
func (s *Statistics) ObservePull(kind string, _ types.ExecutionState, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls[kind]++
	s.rows[kind] += int64(rows)
}

// Total returns the sum over all executors.
func (s *Statistics) Total() executor.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByKind returns a copy of the per operator kind totals.
func (s *Statistics) ByKind() map[string]executor.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKind)
}

// Rows returns the number of rows pulled out of blocks of kind.
func (s *Statistics) Rows(kind string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[kind]
}

// Pulls returns the number of pulls served by blocks of kind.
func (s *Statistics) Pulls(kind string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls[kind]
}

// TeeSink forwards to every sink in order.
type TeeSink []StatsSink

// AddStats implements StatsSink.
func (t TeeSink) AddStats(kind string, st executor.Stats) {
	for _, s := range t {
		s.AddStats(kind, st)
	}
}

// ObservePull implements StatsSink.
func (t TeeSink) ObservePull(kind string, state types.ExecutionState, rows int) {
	for _, s := range t {
		s.ObservePull(kind, state, rows)
	}
}

// Package statusapi exposes read-only model health snapshots and the
// reload/optimize operator actions over the dispatcher's fallback
// chain, independent of any transport.
package statusapi

import (
	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// Dispatcher is the subset of dispatcher.Dispatcher the status API
// needs.
type Dispatcher interface {
	Snapshot() model.ModelStatusSnapshot
	Reload(id string) bool
}

// Service answers model-health queries and operator actions.
type Service struct {
	dispatcher Dispatcher
}

// New builds a Service over dispatcher.
func New(dispatcher Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// Status returns the current per-model health snapshot.
func (s *Service) Status() model.ModelStatusSnapshot {
	return s.dispatcher.Snapshot()
}

// Reload re-initializes a single model: its metrics reset and its
// health transitions back to LOADING, to be re-classified
// HEALTHY|DEGRADED|FAILED on its next dispatch attempt. Returns false
// if id names no registered model.
func (s *Service) Reload(id string) bool {
	return s.dispatcher.Reload(id)
}

// Optimize is a no-op stub reserved for a future tuning routine (e.g.
// reordering the fallback chain by observed latency). Its absence must
// never affect the pipeline; callers may invoke it unconditionally.
func (s *Service) Optimize() {}

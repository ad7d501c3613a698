package model

import "time"

// HealthStatus is the dispatcher's view of a single model's usability.
// Transitions are one-directional within a health check cycle: a model
// only recovers to HEALTHY after a successful probe, never implicitly.
type HealthStatus string

const (
	HealthLoading  HealthStatus = "loading"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFailed   HealthStatus = "failed"
)

// ModelEntry is one node in the dispatcher's priority-ordered fallback
// chain. Priority 0 is attempted first.
type ModelEntry struct {
	ID       string
	Priority int
	Status   HealthStatus

	ErrorRate      float64
	AvgLatencyMs   int64
	ConsecutiveErr int
	LastError      string
	LastAttemptAt  time.Time
	LastSuccessAt  time.Time
}

// ModelStatusSnapshot is the read-only view returned by the status API.
type ModelStatusSnapshot struct {
	Entries     []ModelEntry
	GeneratedAt time.Time
}

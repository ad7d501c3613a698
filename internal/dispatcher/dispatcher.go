// Package dispatcher routes a generation request through a
// priority-ordered chain of model clients, tracking each client's
// health and falling back to the next entry whenever the current one
// is unhealthy or fails.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
	"github.com/connexus-ai/kenyalaw-rag/internal/rerr"
)

// ModelClient is the capability every model backend must implement to
// participate in the fallback chain. Both gcpclient.GenAIAdapter and
// gcpclient.BYOLLMClient satisfy it as-is.
type ModelClient interface {
	GenerateContent(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config tunes the dispatcher's health and retry behavior.
type Config struct {
	MaxRetries         int
	PerAttemptTimeout  time.Duration
	ErrorRateThreshold float64
	WindowSize         int
	LatencyThresholdMs int64
}

type node struct {
	id       string
	priority int
	client   ModelClient

	mu       sync.Mutex
	status   model.HealthStatus
	window   []bool // true = success, ring buffer of last WindowSize outcomes
	windowAt int
	filled   int

	consecutiveErr int
	lastError      string
	lastAttemptAt  time.Time
	lastSuccessAt  time.Time
	latencySum     int64
	latencyCount   int64
}

// Dispatcher holds the priority-ordered fallback chain and dispatches
// generation requests to the first client not marked FAILED,
// advancing to the next on failure.
type Dispatcher struct {
	cfg   Config
	mu    sync.RWMutex
	nodes []*node
}

// New builds a Dispatcher with no entries; add them with Register.
// Zero-valued Config fields other than MaxRetries take defaults; a
// MaxRetries of 0 means each entry is attempted once per dispatch.
func New(cfg Config) *Dispatcher {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PerAttemptTimeout <= 0 {
		cfg.PerAttemptTimeout = 20 * time.Second
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = 0.5
	}
	return &Dispatcher{cfg: cfg}
}

// Register adds a model client to the fallback chain at the given
// priority. Dispatch orders candidates by ascending priority regardless
// of registration order, so lower priority values are tried first.
func (d *Dispatcher) Register(id string, priority int, client ModelClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = append(d.nodes, &node{
		id:       id,
		priority: priority,
		client:   client,
		status:   model.HealthLoading,
		window:   make([]bool, d.cfg.WindowSize),
	})
}

// Dispatch attempts generation against the fallback chain in ascending
// priority order, skipping FAILED nodes, until one succeeds or all have
// been tried. If every node is FAILED, the highest-priority (lowest
// priority value) entry is retried once as a last resort before giving
// up. Returns rerr.AllModelsFailed if that also fails.
func (d *Dispatcher) Dispatch(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	d.mu.RLock()
	nodes := make([]*node, len(d.nodes))
	copy(nodes, d.nodes)
	d.mu.RUnlock()

	if len(nodes) == 0 {
		return "", "", rerr.New(rerr.AllModelsFailed, "no models registered")
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].priority < nodes[j].priority })

	var lastErr error
	attempted := 0
	for _, n := range nodes {
		if n.snapshotStatus() == model.HealthFailed {
			continue
		}

		attempted++
		text, err := d.attemptWithRetry(ctx, n, systemPrompt, userPrompt)
		if err == nil {
			return text, n.id, nil
		}

		if ctx.Err() != nil {
			return "", "", rerr.Wrap(rerr.Cancelled, "dispatch cancelled", ctx.Err())
		}

		lastErr = err
		slog.Warn("dispatcher: model failed, advancing fallback chain",
			"model_id", n.id, "error", err)
	}

	if attempted == 0 {
		n := nodes[0]
		slog.Warn("dispatcher: every model failed, retrying highest-priority entry as last resort",
			"model_id", n.id)
		text, err := d.attemptWithRetry(ctx, n, systemPrompt, userPrompt)
		if err == nil {
			return text, n.id, nil
		}
		if ctx.Err() != nil {
			return "", "", rerr.Wrap(rerr.Cancelled, "dispatch cancelled", ctx.Err())
		}
		return "", "", rerr.Wrap(rerr.AllModelsFailed, "every model in the chain is marked failed", err)
	}
	return "", "", rerr.Wrap(rerr.AllModelsFailed, "all models in fallback chain failed", lastErr)
}

func (d *Dispatcher) attemptWithRetry(ctx context.Context, n *node, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := jitteredBackoff(attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.PerAttemptTimeout)
		start := time.Now()
		text, err := n.client.GenerateContent(attemptCtx, systemPrompt, userPrompt)
		elapsed := time.Since(start)
		cancel()

		n.recordAttempt(err == nil, elapsed.Milliseconds(), err, d.cfg)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			lastErr = rerr.Wrap(rerr.ModelTransient, "model attempt timed out", err)
		}
	}
	return "", lastErr
}

// jitteredBackoff returns an exponential backoff with +/-20% jitter,
// base 300ms, doubling per attempt, capped at 4s.
func jitteredBackoff(attempt int) time.Duration {
	base := 300 * time.Millisecond
	backoff := base << uint(attempt-1)
	if backoff > 4*time.Second {
		backoff = 4 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 5))
	if rand.Intn(2) == 0 {
		return backoff + jitter
	}
	return backoff - jitter
}

func (n *node) snapshotStatus() model.HealthStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *node) recordAttempt(success bool, latencyMs int64, err error, cfg Config) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lastAttemptAt = time.Now()
	n.window[n.windowAt] = success
	n.windowAt = (n.windowAt + 1) % len(n.window)
	if n.filled < len(n.window) {
		n.filled++
	}
	n.latencySum += latencyMs
	n.latencyCount++

	if success {
		n.consecutiveErr = 0
		n.lastSuccessAt = time.Now()
	} else {
		n.consecutiveErr++
		n.lastError = err.Error()
	}

	rate := n.errorRateLocked()
	switch {
	case n.consecutiveErr >= 5:
		n.status = model.HealthFailed
	case rate > cfg.ErrorRateThreshold:
		n.status = model.HealthDegraded
	default:
		n.status = model.HealthHealthy
	}
}

func (n *node) errorRateLocked() float64 {
	if n.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < n.filled; i++ {
		if !n.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(n.filled)
}

// Snapshot returns the current ModelStatusSnapshot for the status API.
func (d *Dispatcher) Snapshot() model.ModelStatusSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make([]model.ModelEntry, 0, len(d.nodes))
	for _, n := range d.nodes {
		n.mu.Lock()
		var avgLatency int64
		if n.latencyCount > 0 {
			avgLatency = n.latencySum / n.latencyCount
		}
		entries = append(entries, model.ModelEntry{
			ID:             n.id,
			Priority:       n.priority,
			Status:         n.status,
			ErrorRate:      n.errorRateLocked(),
			AvgLatencyMs:   avgLatency,
			ConsecutiveErr: n.consecutiveErr,
			LastError:      n.lastError,
			LastAttemptAt:  n.lastAttemptAt,
			LastSuccessAt:  n.lastSuccessAt,
		})
		n.mu.Unlock()
	}
	return model.ModelStatusSnapshot{Entries: entries, GeneratedAt: time.Now()}
}

// Reload resets a node's health state back to LOADING, giving it a
// fresh window and clearing its latency average and last error. Used by the status API's reload operation to recover a
// FAILED node after an operator has addressed the underlying issue.
func (d *Dispatcher) Reload(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range d.nodes {
		if n.id == id {
			n.mu.Lock()
			n.status = model.HealthLoading
			n.consecutiveErr = 0
			n.window = make([]bool, len(n.window))
			n.windowAt = 0
			n.filled = 0
			n.latencySum = 0
			n.latencyCount = 0
			n.lastError = ""
			n.mu.Unlock()
			return true
		}
	}
	return false
}

// Package introspect exposes a read-only HTTP endpoint over the reactor's
// live state, adapted from the teacher's internal/runtime/webui.go (CORS
// origin matching) and resources.go (CPU/memory sampling): the teacher
// exposed its watermill handler registry; this package exposes the
// dispatchflow reactor's pending scheduler jobs, outstanding outbox
// entries, poison-message tallies, and dead-letter tallies instead.
package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/metrics"
	"strings"
	"sync"
	"time"

	"github.com/flowmesh/dispatchflow/internal/core/dlqmetrics"
	"github.com/flowmesh/dispatchflow/internal/core/outbox"
	"github.com/flowmesh/dispatchflow/internal/core/pump"
	"github.com/flowmesh/dispatchflow/internal/core/scheduler"
)

// ResourceUsage is a point-in-time CPU/memory/goroutine sample, adapted
// from the teacher's resources.go ResourceUsage.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

// Snapshot aggregates the reactor's introspectable state for one request.
type Snapshot struct {
	PendingJobs       []scheduler.Job                        `json:"pending_jobs"`
	OutstandingOutbox []outbox.Entry                          `json:"outstanding_outbox"`
	PoisonMetrics     map[string]pump.RoutingKeyPoisonMetrics `json:"poison_metrics"`
	DLQMetrics        dlqmetrics.Snapshot                     `json:"dlq_metrics"`
	Resources         ResourceUsage                           `json:"resources"`
	CollectedAt       time.Time                               `json:"collected_at"`
}

// Config wires a Handler's data sources. Any field left nil is simply
// omitted from the snapshot, so a caller wiring only a subset of the
// reactor's components still gets a valid (partial) response.
type Config struct {
	Scheduler         scheduler.Scheduler
	Outbox            outbox.Outbox
	PoisonMetrics     *pump.PoisonMetrics
	DLQMetrics        *dlqmetrics.Metrics
	OutstandingSince  time.Duration
	OutstandingLimit  int
	// CORSAllowedOrigins lists origins permitted to read the snapshot
	// cross-origin. An entry of "*" allows every origin.
	CORSAllowedOrigins []string
}

// Handler serves Snapshot as JSON over GET, with the teacher's
// allow-list CORS behavior for browser-based dashboards.
type Handler struct {
	cfg     Config
	tracker *resourceTracker
}

// NewHandler builds a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	if cfg.OutstandingLimit == 0 {
		cfg.OutstandingLimit = 100
	}
	return &Handler{cfg: cfg, tracker: newResourceTracker()}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if len(h.cfg.CORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if allowed := h.allowedCORSOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	snap, err := h.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Snapshot gathers the current reactor state from every configured source.
func (h *Handler) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{CollectedAt: time.Now(), Resources: h.tracker.Sample()}

	if h.cfg.Scheduler != nil {
		jobs, err := h.cfg.Scheduler.ListPending(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		snap.PendingJobs = jobs
	}

	if h.cfg.Outbox != nil {
		since := time.Now()
		if h.cfg.OutstandingSince > 0 {
			since = since.Add(-h.cfg.OutstandingSince)
		}
		entries, err := h.cfg.Outbox.Outstanding(ctx, since, h.cfg.OutstandingLimit)
		if err != nil {
			return Snapshot{}, err
		}
		snap.OutstandingOutbox = entries
	}

	if h.cfg.PoisonMetrics != nil {
		snap.PoisonMetrics = h.cfg.PoisonMetrics.Snapshot()
	}

	if h.cfg.DLQMetrics != nil {
		snap.DLQMetrics = h.cfg.DLQMetrics.Snapshot()
	}

	return snap, nil
}

// allowedCORSOrigin mirrors the teacher's getAllowedCORSOrigin: "*" permits
// any origin, otherwise the configured list is matched case-insensitively.
func (h *Handler) allowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range h.cfg.CORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}

// resourceTracker samples coarse CPU/memory usage, adapted verbatim from
// the teacher's resources.go resourceTracker.
type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: []metrics.Sample{{Name: "/sched/cpu:seconds"}},
		numCPU:  float64(runtime.NumCPU()),
	}
}

func (r *resourceTracker) Sample() ResourceUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.Read(r.samples)
	sample := r.samples[0]
	haveCPU := sample.Value.Kind() == metrics.KindFloat64
	var cpuSeconds float64
	if haveCPU {
		cpuSeconds = sample.Value.Float64()
	}
	now := time.Now()

	var cpuPercent float64
	if haveCPU && !r.lastSample.IsZero() {
		deltaCPU := cpuSeconds - r.lastCPUSeconds
		deltaWall := now.Sub(r.lastSample).Seconds()
		if deltaWall > 0 && r.numCPU > 0 {
			cpuPercent = (deltaCPU / deltaWall) / r.numCPU * 100
		}
	}

	if haveCPU {
		r.lastCPUSeconds = cpuSeconds
	}
	r.lastSample = now

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return ResourceUsage{
		CPUPercent:  cpuPercent,
		MemoryBytes: mem.Alloc,
		Goroutines:  runtime.NumGoroutine(),
	}
}

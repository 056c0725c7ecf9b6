// Package health serves the /livez and /readyz probes for the API server.
//
// Registered probes poll on their own tickers. A probe flips to failing only
// after several consecutive errors and recovers on the first success, so one
// slow poll of postgres does not drop the server out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Consecutive results needed to change a probe's state.
const (
	failAfter    = 3
	recoverAfter = 1
)

// probe wraps a CheckFunc with flap damping.
//
// poll runs on one goroutine per probe, so the fails/passes counters are
// unsynchronized. passing and lastErr are read from HTTP handler goroutines
// and use atomics.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	passing atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, fn: fn}
	// Optimistic until the first polls say otherwise.
	p.passing.Store(true)
	return p
}

func (p *probe) ok() bool {
	return p.passing.Load()
}

func (p *probe) lastError() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// poll runs the check once and applies the damping thresholds. Single
// goroutine only.
func (p *probe) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passes = 0
		if p.fails++; p.fails >= failAfter {
			p.passing.Store(false)
		}
		return
	}
	p.fails = 0
	if p.passes++; p.passes >= recoverAfter {
		p.passing.Store(true)
	}
}

// Health holds the server's liveness and readiness probes plus the manual
// ready gate toggled around startup and drain.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health with the ready gate closed. Call SetReady(true) once
// wiring is complete.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe behind /livez. Liveness failures mean
// the process itself is wedged (goroutine leak, runaway GC) and should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe behind /readyz. Readiness failures
// mean a dependency (postgres) is unavailable and traffic should route
// elsewhere until it recovers.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one polling goroutine per registered probe. Register all
// probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.poll(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.poll(ctx)
				}
			}
		}(p)
	}
}

// SetReady opens or closes the manual ready gate. Graceful shutdown closes
// it first so the load balancer drains before the listener stops.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.ok() {
			return false
		}
	}
	return true
}

// Stop cancels the polling goroutines. Idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint answers /livez: 200 while every liveness probe passes,
// otherwise 503 with the failing probes and their last errors.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeReport(w, failing(probes))
}

// ReadyEndpoint answers /readyz: 200 only when the ready gate is open and
// every readiness probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failures := failing(probes)
	if !ready {
		failures["_ready"] = "server is starting or draining"
	}
	writeReport(w, failures)
}

// failing maps probe name to last error message for every probe currently
// below threshold. It never re-runs the check functions.
func failing(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if p.ok() {
			continue
		}
		if err := p.lastError(); err != nil {
			failures[p.name] = err.Error()
		} else {
			failures[p.name] = "probe failing"
		}
	}
	return failures
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	report := probeReport{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		report.Status = "unhealthy"
		report.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	// The status code is already on the wire; an encode failure here means
	// the client went away.
	_ = json.NewEncoder(w).Encode(report)
}

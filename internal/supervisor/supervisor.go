// Package supervisor implements the Supervisor: startup lease
// reclamation, starting and stopping the Change Detector's poller,
// pause/resume, an on-demand status snapshot, graceful shutdown, and
// bounded auto-restart of the Dispatcher loop (spec.md §4, SPEC_FULL.md
// Supplemental Features). Health is computed only when Status is
// called; there is no periodic health-check timer. OS signals are
// handled by cmd/syncd, and the poller is not restarted.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/tatidev/opms-erp-sync/internal/changedetect"
	"github.com/tatidev/opms-erp-sync/internal/configgate"
	"github.com/tatidev/opms-erp-sync/internal/dispatcher"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/queuestore"
)

// Status is the operational surface's /status snapshot.
type Status struct {
	Paused           bool                 `json:"paused"`
	Degraded         bool                 `json:"degraded"`
	AutoRestartCount int                  `json:"auto_restart_count"`
	ChangeDetector   changedetect.Health  `json:"change_detector"`
	Queue            queuestore.StatusBreakdown `json:"queue"`
}

// Supervisor owns the Dispatcher goroutine's lifetime and exposes
// pause/resume/status.
type Supervisor struct {
	log     *logger.Logger
	gate    configgate.Gate
	detect  changedetect.Detector
	store   queuestore.Store
	disp    *dispatcher.Dispatcher
	leaseTTL time.Duration
	maxRestarts int

	mu           sync.Mutex
	paused       bool
	restartCount int
	cancel       context.CancelFunc
	runDone      chan struct{}
}

func New(log *logger.Logger, gate configgate.Gate, detect changedetect.Detector, store queuestore.Store, disp *dispatcher.Dispatcher, leaseTTL time.Duration, maxRestarts int) *Supervisor {
	return &Supervisor{
		log: log, gate: gate, detect: detect, store: store, disp: disp,
		leaseTTL: leaseTTL, maxRestarts: maxRestarts,
	}
}

// Start reclaims expired leases, starts the Change Detector's poller,
// and launches the Dispatcher loop under a bounded auto-restart
// supervisor goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	if _, err := s.store.ReclaimExpiredLeases(s.leaseTTL); err != nil {
		s.log.Errorw("startup lease reclamation failed", "error", err)
	}

	s.detect.StartPolling()

	runCtx, cancel := s.withPause(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.runDone = make(chan struct{})
	s.mu.Unlock()

	go s.superviseDispatcher(runCtx)
}

// superviseDispatcher runs the Dispatcher loop and restarts it up to
// maxRestarts times if it exits unexpectedly (panics are not recovered
// here; only clean early returns trigger a restart).
func (s *Supervisor) superviseDispatcher(ctx context.Context) {
	defer close(s.runDone)
	for {
		s.disp.Run(ctx)

		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.restartCount++
		count := s.restartCount
		s.mu.Unlock()

		if count > s.maxRestarts {
			s.log.Errorw("dispatcher exceeded max auto-restarts, giving up", "max_restarts", s.maxRestarts)
			return
		}
		s.log.Warnw("dispatcher loop exited unexpectedly, restarting", "attempt", count)
	}
}

// withPause wraps ctx so Pause can stop the Dispatcher without
// cancelling the whole process.
func (s *Supervisor) withPause(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(parent)
}

// Pause stops the Dispatcher loop; the Change Detector keeps enqueuing.
func (s *Supervisor) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Resume restarts the Dispatcher loop after a Pause.
func (s *Supervisor) Resume(ctx context.Context) {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	runCtx, cancel := s.withPause(ctx)
	s.cancel = cancel
	s.runDone = make(chan struct{})
	s.mu.Unlock()

	go s.superviseDispatcher(runCtx)
}

// Shutdown cancels the Dispatcher loop and waits up to grace for it to
// finish its in-flight job (spec.md §5: "a hard stop after a
// configurable grace window leaves the in-flight job in PROCESSING").
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.detect.StopPolling()

	s.mu.Lock()
	cancel := s.cancel
	done := s.runDone
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(grace):
		s.log.Warnw("shutdown grace period elapsed with dispatcher still running")
	}
}

// Status reports the current health/pause/restart snapshot for the
// operational surface.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	paused := s.paused
	restarts := s.restartCount
	s.mu.Unlock()

	health := s.detect.Health()
	breakdown, err := s.store.StatusBreakdown()
	if err != nil {
		s.log.Errorw("status breakdown query failed", "error", err)
	}

	return Status{
		Paused:           paused,
		Degraded:         health.Degraded(),
		AutoRestartCount: restarts,
		ChangeDetector:   health,
		Queue:            breakdown,
	}
}

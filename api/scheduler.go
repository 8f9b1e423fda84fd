/*
scheduler.go - Background integrity checks

PURPOSE:
  Periodically recomputes every key's balance from the ledger and compares
  it with the stored running balance, so drift is logged without anyone
  calling GET /api/integrity.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - Keeps the most recent report for GET /api/integrity/last
  - Mismatches are logged by stock.Reporter.Verify

USAGE:
  scheduler := NewIntegrityScheduler(handler.Reporter, time.Hour)
  scheduler.Start(ctx)
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/warp/stock-ledger/logging"
	"github.com/warp/stock-ledger/stock"
)

// IntegrityScheduler runs stock.Reporter.Verify on a fixed interval.
type IntegrityScheduler struct {
	Reporter *stock.Reporter
	Interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    stock.IntegrityReport
	lastErr error
	lastRun time.Time
}

// NewIntegrityScheduler creates a scheduler. It does nothing until Start.
func NewIntegrityScheduler(reporter *stock.Reporter, interval time.Duration) *IntegrityScheduler {
	return &IntegrityScheduler{Reporter: reporter, Interval: interval}
}

// Start launches the background loop. The loop's logger comes from ctx.
// A non-positive interval disables the scheduler.
func (s *IntegrityScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logging.FromContext(ctx).WithComponent("integrity-scheduler")
	if s.Interval <= 0 {
		log.Infow("integrity scheduler disabled")
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)

	log.Infow("integrity scheduler started", "interval", s.Interval.String())
}

// Stop cancels the loop and waits for an in-flight check to finish.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

func (s *IntegrityScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one check and records the outcome.
func (s *IntegrityScheduler) RunNow(ctx context.Context) (stock.IntegrityReport, error) {
	log := logging.FromContext(ctx).WithComponent("integrity-scheduler")
	start := time.Now()

	report, err := s.Reporter.Verify(ctx)

	s.mu.Lock()
	s.last, s.lastErr, s.lastRun = report, err, start
	s.mu.Unlock()

	if err != nil {
		log.Errorw("integrity check failed", "error", err)
		return report, err
	}
	log.Infow("integrity check finished",
		"checked", report.Checked,
		"mismatches", len(report.Mismatches),
		"duration", time.Since(start).String(),
	)
	return report, nil
}

// Last returns the most recent outcome. at is zero before the first check.
func (s *IntegrityScheduler) Last() (report stock.IntegrityReport, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastRun, s.lastErr
}

// LastIntegrityDTO is the body of GET /api/integrity/last.
type LastIntegrityDTO struct {
	IntegrityDTO
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// LastIntegrity returns the scheduler's most recent report.
// GET /api/integrity/last
func (s *IntegrityScheduler) LastIntegrity(w http.ResponseWriter, r *http.Request) {
	report, at, err := s.Last()
	if at.IsZero() {
		writeError(w, http.StatusNotFound, "No integrity check has run yet", nil)
		return
	}

	resp := LastIntegrityDTO{
		IntegrityDTO: IntegrityDTO{OK: err == nil && report.OK(), IntegrityReport: report},
		CheckedAt:    at,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

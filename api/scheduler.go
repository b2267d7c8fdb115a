/*
scheduler.go - Expiring-voucher sweep

PURPOSE:
  Periodically finds COMPLETED vouchers whose expiry falls inside a
  look-ahead window and emits a notification per voucher, so users hear
  about credits they are about to lose. Expiry itself needs no sweep: it is
  computed on read, never written back.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each voucher is notified once; the sweep remembers what it has seen
  - Notifications are log lines today; a push/email sender slots in behind
    the Notifier func

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - LookAhead:     Expiry window to warn about (default: 72 hours)

USAGE:
  sweep := NewExpirySweep(workflow, logger)
  sweep.Start()
  // ... later
  sweep.Stop()

SEE ALSO:
  - redemption/workflow.go: ExpiringVouchers query
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/redemption"
)

// Notifier delivers an expiry warning for one voucher.
type Notifier func(ctx context.Context, r redemption.Redemption)

// ExpirySweep warns users about vouchers that are about to expire.
type ExpirySweep struct {
	Workflow      *redemption.Workflow
	Logger        *zap.Logger
	CheckInterval time.Duration
	LookAhead     time.Duration
	Notify        Notifier

	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	notified map[redemption.RedemptionID]bool
}

// NewExpirySweep creates a sweep with default interval and window. The
// default notifier logs; replace Notify to deliver for real.
func NewExpirySweep(workflow *redemption.Workflow, logger *zap.Logger) *ExpirySweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpirySweep{
		Workflow:      workflow,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		LookAhead:     72 * time.Hour,
		stop:          make(chan struct{}),
		notified:      make(map[redemption.RedemptionID]bool),
	}
	s.Notify = s.logNotification
	return s
}

// Start begins the sweep.
func (s *ExpirySweep) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Logger.Info("expiry sweep started",
		zap.Duration("check_interval", s.CheckInterval),
		zap.Duration("look_ahead", s.LookAhead))
}

// Stop stops the sweep.
func (s *ExpirySweep) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Logger.Info("expiry sweep stopped")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *ExpirySweep) RunNow() {
	s.sweep()
}

func (s *ExpirySweep) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *ExpirySweep) sweep() {
	ctx := context.Background()

	expiring, err := s.Workflow.ExpiringVouchers(ctx, s.LookAhead)
	if err != nil {
		s.Logger.Error("expiry sweep query failed", zap.Error(err))
		return
	}

	sent := 0
	for _, r := range expiring {
		s.mu.Lock()
		seen := s.notified[r.ID]
		if !seen {
			s.notified[r.ID] = true
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		s.Notify(ctx, r)
		sent++
	}

	if sent > 0 {
		s.Logger.Info("expiry sweep completed",
			zap.Int("expiring", len(expiring)),
			zap.Int("notified", sent))
	}
}

func (s *ExpirySweep) logNotification(_ context.Context, r redemption.Redemption) {
	fields := []zap.Field{
		zap.String("user_id", string(r.UserID)),
		zap.String("redemption_id", string(r.ID)),
		zap.String("voucher_code", r.VoucherCode),
	}
	if r.ExpiryDate != nil {
		fields = append(fields, zap.Time("expiry_date", *r.ExpiryDate))
	}
	s.Logger.Info("voucher expiring soon", fields...)
}

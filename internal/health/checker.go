// Package health re-verifies the ledger in the background and reports
// whether the notary should be considered healthy.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	FailThreshold int
}

// LedgerVerifier walks the ledger. *chain.Chain satisfies it.
type LedgerVerifier interface {
	Verify(ctx context.Context) error
}

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(success bool)

// Status is the outcome of the most recent checks.
type Status struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"lastCheck,omitzero"`
	LastError string    `json:"lastError,omitempty"`
	FailCount int       `json:"failCount"`
}

// Checker runs periodic ledger integrity checks.
type Checker struct {
	ledger    LedgerVerifier
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Checker. The ledger is assumed healthy until a check says
// otherwise.
func New(ledger LedgerVerifier, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = time.Minute
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		status: Status{Healthy: true},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
			h.Check(checkCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the ledger once and updates the status. A broken hash link
// marks the ledger unhealthy immediately; other failures, such as an
// unreachable database, do so after FailThreshold consecutive attempts.
func (h *Checker) Check(ctx context.Context) bool {
	err := h.ledger.Verify(ctx)
	success := err == nil

	if h.onMetrics != nil {
		h.onMetrics(success)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	wasHealthy := h.status.Healthy
	h.status.LastCheck = h.now().UTC()
	if success {
		h.status = Status{Healthy: true, LastCheck: h.status.LastCheck}
		if !wasHealthy {
			h.logger.Info("health: ledger recovered")
		}
		return true
	}

	h.status.FailCount++
	h.status.LastError = err.Error()

	var ie *chain.IntegrityError
	corrupt := errors.As(err, &ie)
	if corrupt || h.status.FailCount >= h.cfg.FailThreshold {
		h.status.Healthy = false
	}
	if wasHealthy && !h.status.Healthy {
		h.logger.Warn("health: ledger degraded",
			zap.Error(err),
			zap.Int("fail_count", h.status.FailCount),
			zap.Bool("corrupt", corrupt),
		)
	}
	return false
}

// Status returns a snapshot of the current status.
func (h *Checker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

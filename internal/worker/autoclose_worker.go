package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/service"
)

// Sweeper runs one auto-close pass.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// AutoCloseWorker runs the sweeper once at start and then on every tick.
type AutoCloseWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewAutoCloseWorker builds the worker. Intervals under a minute are raised to one minute.
func NewAutoCloseWorker(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *AutoCloseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	return &AutoCloseWorker{sweeper: sweeper, interval: interval, logger: logger}
}

// Start launches the loop. Calling Start on a running worker is a no-op.
func (w *AutoCloseWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (w *AutoCloseWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *AutoCloseWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *AutoCloseWorker) runOnce(ctx context.Context) {
	report, err := w.sweeper.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.Error("auto-close sweep failed", zap.Error(err))
	}
	w.logger.Info("auto-close sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("closed", report.Closed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crypto-tracker/internal/collector"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/pricing"
	"github.com/crypto-tracker/internal/service"
	"github.com/crypto-tracker/internal/types"
)

// AddressLister enumerates tracked addresses for a cycle
type AddressLister interface {
	ListAll(ctx context.Context) ([]*models.TrackedAddress, error)
	ListByUser(ctx context.Context, userID string) ([]*models.TrackedAddress, error)
}

// CycleErrorWriter records per-cycle failure rows
type CycleErrorWriter interface {
	Create(ctx context.Context, cycleErr *models.CycleError) error
}

// AttemptResult is the outcome of one collector run against one address
type AttemptResult struct {
	Collector string
	Category  types.UpdateCategory
	Address   string
	Err       error
}

// CycleReport summarizes one completed update cycle
type CycleReport struct {
	CycleID    uuid.UUID
	SnapshotID int64
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   []AttemptResult
	Failed     int
}

// CycleHandle tracks an update cycle running in the background
type CycleHandle struct {
	ID uuid.UUID

	done   chan struct{}
	report *CycleReport
	err    error
}

// Done returns a channel closed when the cycle finishes
func (h *CycleHandle) Done() <-chan struct{} {
	return h.done
}

// Poll reports whether the cycle has finished without blocking
func (h *CycleHandle) Poll() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the cycle finishes and returns its report
func (h *CycleHandle) Wait() (*CycleReport, error) {
	<-h.done
	return h.report, h.err
}

// UpdateWorker drives periodic update cycles: it opens one snapshot,
// records spot prices against it, and fans every collector out over
// every tracked address on a bounded worker pool. Collector failures
// become CycleError rows and omissions, never aborted cycles.
type UpdateWorker struct {
	snapshots   *service.SnapshotService
	addresses   AddressLister
	cycleErrors CycleErrorWriter
	updater     *pricing.Updater
	collectors  []collector.Collector
	interval    time.Duration
	poolSize    int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// UpdateWorkerConfig holds configuration for an update worker
type UpdateWorkerConfig struct {
	Snapshots   *service.SnapshotService
	Addresses   AddressLister
	CycleErrors CycleErrorWriter
	Updater     *pricing.Updater
	Collectors  []collector.Collector
	Interval    time.Duration
	PoolSize    int
}

// NewUpdateWorker creates a new update worker
func NewUpdateWorker(cfg *UpdateWorkerConfig) (*UpdateWorker, error) {
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("snapshot service cannot be nil")
	}
	if cfg.Addresses == nil {
		return nil, fmt.Errorf("address repository cannot be nil")
	}
	if cfg.CycleErrors == nil {
		return nil, fmt.Errorf("cycle error repository cannot be nil")
	}
	if cfg.Updater == nil {
		return nil, fmt.Errorf("price updater cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 24 * time.Hour
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}

	return &UpdateWorker{
		snapshots:   cfg.Snapshots,
		addresses:   cfg.Addresses,
		cycleErrors: cfg.CycleErrors,
		updater:     cfg.Updater,
		collectors:  cfg.Collectors,
		interval:    interval,
		poolSize:    poolSize,
	}, nil
}

// Start launches the periodic cycle loop. The first cycle runs
// immediately.
func (w *UpdateWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("update worker already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for the in-flight cycle
func (w *UpdateWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
}

func (w *UpdateWorker) loop(ctx context.Context) {
	defer close(w.doneCh)
	log := logging.FromContext(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx, log)
		}
	}
}

func (w *UpdateWorker) runOnce(ctx context.Context, log *zap.SugaredLogger) {
	if _, err := w.RunUpdateCycle(ctx, nil); err != nil {
		log.Errorw("Update cycle failed", "error", err)
	}
}

// StartUpdateCycle runs one update cycle in the background and returns
// a handle for polling completion. A non-nil userID restricts the
// cycle to that user's tracked addresses.
func (w *UpdateWorker) StartUpdateCycle(ctx context.Context, userID *string) *CycleHandle {
	handle := &CycleHandle{ID: uuid.New(), done: make(chan struct{})}
	go func() {
		defer close(handle.done)
		handle.report, handle.err = w.runCycle(ctx, handle.ID, userID)
	}()
	return handle
}

// RunUpdateCycle executes one full update cycle and returns its report.
// A non-nil userID restricts the cycle to that user's tracked
// addresses. The returned error is non-nil only when the cycle could
// not run at all (no snapshot, no address list); individual collector
// failures are reported through the report and as CycleError rows.
func (w *UpdateWorker) RunUpdateCycle(ctx context.Context, userID *string) (*CycleReport, error) {
	return w.runCycle(ctx, uuid.New(), userID)
}

func (w *UpdateWorker) runCycle(ctx context.Context, cycleID uuid.UUID, userID *string) (*CycleReport, error) {
	ctx = logging.WithFields(ctx, "cycleId", cycleID.String())
	log := logging.FromContext(ctx)
	started := time.Now()

	snap, err := w.snapshots.CreateSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	log.Infow("Update cycle started", "snapshotId", snap.ID)

	report := &CycleReport{CycleID: cycleID, SnapshotID: snap.ID, StartedAt: started}

	w.updatePrices(ctx, snap, report)

	var addresses []*models.TrackedAddress
	if userID != nil {
		addresses, err = w.addresses.ListByUser(ctx, *userID)
	} else {
		addresses, err = w.addresses.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	pool := pond.NewPool(w.poolSize, pond.WithContext(ctx))
	defer pool.StopAndWait()

	var mu sync.Mutex
	group := pool.NewGroup()
	for _, c := range w.collectors {
		for _, address := range addresses {
			group.SubmitErr(func() error {
				err := c.Collect(ctx, address, snap)
				mu.Lock()
				report.Attempts = append(report.Attempts, AttemptResult{
					Collector: c.Name(),
					Category:  c.Category(),
					Address:   address.PublicAddress,
					Err:       err,
				})
				mu.Unlock()
				if err != nil {
					w.recordFailure(ctx, snap, c, address, err)
				}
				// the group must keep going; failures were recorded
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	for _, attempt := range report.Attempts {
		if attempt.Err != nil {
			report.Failed++
		}
	}
	log.Infow("Update cycle finished",
		"snapshotId", snap.ID,
		"attempts", len(report.Attempts),
		"failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// updatePrices records spot prices under the new snapshot. Assets the
// price API does not know become error rows, not cycle failures.
func (w *UpdateWorker) updatePrices(ctx context.Context, snap *models.Snapshot, report *CycleReport) {
	log := logging.FromContext(ctx)

	missing, err := w.updater.UpdatePrices(ctx, snap)
	report.Attempts = append(report.Attempts, AttemptResult{
		Collector: "price-update",
		Category:  types.CategoryPrices,
		Err:       err,
	})
	if err != nil {
		log.Errorw("Price update failed", "error", err)
		w.saveCycleError(ctx, &models.CycleError{
			SnapshotID: snap.ID,
			Category:   string(types.CategoryPrices),
			Message:    err.Error(),
		})
		return
	}
	for _, name := range missing {
		asset := name
		log.Warnw("No spot price for asset", "asset", asset)
		w.saveCycleError(ctx, &models.CycleError{
			SnapshotID: snap.ID,
			Category:   string(types.CategoryPrices),
			Asset:      &asset,
			Message:    "no spot price returned",
		})
	}
}

func (w *UpdateWorker) recordFailure(ctx context.Context, snap *models.Snapshot, c collector.Collector, address *models.TrackedAddress, err error) {
	log := logging.FromContext(ctx)
	log.Errorw("Collector failed",
		"collector", c.Name(),
		"address", address.PublicAddress,
		"error", err)

	name := c.Name()
	w.saveCycleError(ctx, &models.CycleError{
		SnapshotID: snap.ID,
		AddressID:  &address.ID,
		Category:   string(c.Category()),
		Protocol:   &name,
		Message:    err.Error(),
	})
}

func (w *UpdateWorker) saveCycleError(ctx context.Context, cycleErr *models.CycleError) {
	if err := w.cycleErrors.Create(ctx, cycleErr); err != nil {
		logging.FromContext(ctx).Errorw("Failed to record cycle error", "error", err)
	}
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/clock"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/metrics"
)

const (
	DefaultReconcileInterval = 10 * time.Second
	reconcileTimeout         = 30 * time.Second
)

// BatchAPI is the batch status side of the API; *api.Client satisfies it
type BatchAPI interface {
	BatchReputation(ctx context.Context, wallets []string) ([]api.ReputationScore, error)
	BatchReceiptStatus(ctx context.Context, signatures []string) ([]api.ReceiptStatus, error)
}

// ReconcilerOptions configures a Reconciler
type ReconcilerOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}

// Reconciler periodically pulls reputation scores and receipt status for
// the posts in a Store and merges what changed. Failures are logged and
// never surface to the caller.
type Reconciler struct {
	store    *Store
	api      BatchAPI
	interval time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics

	mu      sync.Mutex
	running bool
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	timer   clock.Timer
	runs    int
}

func NewReconciler(store *Store, batch BatchAPI, opts ReconcilerOptions) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultReconcileInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Reconciler{
		store:    store,
		api:      batch,
		interval: opts.Interval,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
	}
}

// Start arms the fixed interval timer. The first pass runs one interval
// after Start.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.gen++
	r.ctx, r.cancel = context.WithCancel(ctx)

	logger.Info("Starting reconciler", "interval", r.interval)
	r.armLocked()
}

// Stop disarms the timer and cancels an in-flight pass
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancel()
	logger.Info("Reconciler stopped")
}

// Runs returns how many timer-driven passes have completed
func (r *Reconciler) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func (r *Reconciler) armLocked() {
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.interval, func() { r.tick(gen) })
}

func (r *Reconciler) tick(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.mu.Unlock()

	r.RunOnce(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.runs++
	r.armLocked()
}

// RunOnce performs both reconcile operations
func (r *Reconciler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	start := r.clock.Now()
	scores := r.PollReputationScores(ctx)
	receipts := r.CheckBatchReceiptStatus(ctx)
	if scores > 0 || receipts > 0 {
		logger.Debug("Reconcile pass merged changes",
			"reputation", scores,
			"receipts", receipts,
			"duration", r.clock.Now().Sub(start),
		)
	}
}

// PollReputationScores fetches scores for every distinct author wallet in
// one call and merges the changed ones. Returns the number merged.
func (r *Reconciler) PollReputationScores(ctx context.Context) int {
	wallets := r.store.Wallets()
	if len(wallets) == 0 {
		return 0
	}

	scores, err := r.api.BatchReputation(ctx, wallets)
	if err != nil {
		r.metrics.ReconcileFailed("reputation")
		logger.Warn("Reputation reconcile failed", "wallets", len(wallets), "error", err)
		return 0
	}

	merged := r.store.UpdateReputationScores(scores)
	r.metrics.ObserveReconcile("reputation", len(wallets), merged)
	return merged
}

// CheckBatchReceiptStatus fetches receipt status for every valid signature
// in one call and merges the changed ones. Returns the number merged.
func (r *Reconciler) CheckBatchReceiptStatus(ctx context.Context) int {
	sigs := r.store.ValidSignatures()
	if len(sigs) == 0 {
		return 0
	}

	statuses, err := r.api.BatchReceiptStatus(ctx, sigs)
	if err != nil {
		r.metrics.ReconcileFailed("receipts")
		logger.Warn("Receipt reconcile failed", "signatures", len(sigs), "error", err)
		return 0
	}

	merged := r.store.UpdateReceiptStatuses(statuses)
	r.metrics.ObserveReconcile("receipts", len(sigs), merged)
	return merged
}

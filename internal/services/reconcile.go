package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proptools/internal/store"
)

const (
	reconcileBatchSize = 50
	reconcileInterval  = 500 * time.Millisecond
	reconcileQueueSize = 1000
)

type reconcileJob struct {
	ledger   string
	targetID uint
}

// Reconciler 异步校对计数器：按账本重新计数并回写，发现偏差时记 WARN
type Reconciler struct {
	store   store.Store
	queue   chan reconcileJob // 待校对队列
	pending map[reconcileJob]bool
	mu      sync.Mutex

	interval time.Duration
	stop     context.CancelFunc
	done     chan struct{}
}

func NewReconciler(st store.Store) *Reconciler {
	return &Reconciler{
		store:    st,
		queue:    make(chan reconcileJob, reconcileQueueSize),
		pending:  make(map[reconcileJob]bool),
		interval: reconcileInterval,
	}
}

// Start 启动后台 worker，重复调用无效
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.stop = cancel
	r.done = make(chan struct{})
	go r.worker(ctx)
}

// Stop 停止 worker，并把队列里剩余的任务处理完
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.stop, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Schedule 将 (账本, 目标) 加入校对队列（异步），短时间内重复的请求会被合并
func (r *Reconciler) Schedule(l store.Ledger, targetID uint) {
	job := reconcileJob{ledger: l.Name, targetID: targetID}
	r.mu.Lock()
	if r.pending[job] {
		r.mu.Unlock()
		return
	}
	r.pending[job] = true
	r.mu.Unlock()

	select {
	case r.queue <- job:
	default:
		r.mu.Lock()
		delete(r.pending, job)
		r.mu.Unlock()
		slog.Warn("reconcile queue full, dropping", "ledger", job.ledger, "target_id", targetID)
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	defer close(r.done)
	batch := make([]reconcileJob, 0, reconcileBatchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case job := <-r.queue:
			batch = append(batch, job)
			if len(batch) >= reconcileBatchSize {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			// 退出前处理剩余任务
			for {
				select {
				case job := <-r.queue:
					batch = append(batch, job)
				default:
					r.processBatch(context.Background(), batch)
					return
				}
			}
		}
	}
}

func (r *Reconciler) processBatch(ctx context.Context, jobs []reconcileJob) {
	for _, job := range jobs {
		r.reconcile(ctx, job)

		r.mu.Lock()
		delete(r.pending, job)
		r.mu.Unlock()
	}
}

func (r *Reconciler) reconcile(ctx context.Context, job reconcileJob) {
	l, ok := store.Ledgers[job.ledger]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	before, after, err := r.store.ReconcileCounter(ctx, l, job.targetID)
	if err != nil {
		slog.Error("reconcile counter failed", "ledger", job.ledger, "target_id", job.targetID, "err", err)
		return
	}
	if before != after {
		slog.Warn("counter drift repaired", "ledger", job.ledger, "target_id", job.targetID, "before", before, "after", after)
	}
}

// ReconcileNow 同步校对一个计数器（管理命令和测试用）
func (r *Reconciler) ReconcileNow(ctx context.Context, l store.Ledger, targetID uint) (int, int, error) {
	return r.store.ReconcileCounter(ctx, l, targetID)
}

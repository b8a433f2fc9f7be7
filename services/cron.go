package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"habit-tracker/internal/query"
	"habit-tracker/internal/queue"
	"habit-tracker/models"
)

const (
	reconcileTag     = "index-reconcile"
	reconcileTimeout = time.Minute
	staleQueuedAfter = 10 * time.Minute
)

type IndexChecker interface {
	HasIndex(ctx context.Context, spec query.IndexSpec) (bool, error)
}

type IndexEnqueuer interface {
	Enqueue(ctx context.Context, spec query.IndexSpec) error
}

// IndexReconciler brings index request records in line with the store: it
// closes requests whose index now exists and resubmits queued ones that no
// worker has picked up.
type IndexReconciler struct {
	status  queue.StatusStore
	checker IndexChecker
	enqueue IndexEnqueuer
	log     *slog.Logger
	now     func() time.Time
}

func NewIndexReconciler(status queue.StatusStore, checker IndexChecker, enqueue IndexEnqueuer, log *slog.Logger) *IndexReconciler {
	return &IndexReconciler{
		status:  status,
		checker: checker,
		enqueue: enqueue,
		log:     log,
		now:     time.Now,
	}
}

func (r *IndexReconciler) Reconcile(ctx context.Context) error {
	pending, err := r.status.List(ctx, models.IndexQueued, models.IndexBuilding, models.IndexRetrying)
	if err != nil {
		return err
	}

	for _, req := range pending {
		spec := req.Spec()
		exists, err := r.checker.HasIndex(ctx, spec)
		if err != nil {
			r.log.Warn("Index check failed", "index", req.ID, "error", err)
			continue
		}

		if exists {
			if err := r.status.SetStatus(ctx, req.ID, queue.StatusUpdate{
				Status:   models.IndexReady,
				Attempts: req.Attempts,
				At:       r.now(),
			}); err != nil {
				r.log.Warn("Index status not recorded", "index", req.ID, "error", err)
				continue
			}
			r.log.Info("Index request closed", "index", req.ID)
			continue
		}

		if req.Status == models.IndexQueued && r.now().Sub(req.RequestedAt) > staleQueuedAfter {
			r.resubmit(ctx, req)
		}
	}
	return nil
}

// resubmit hands a stale queued request to the queue again and restarts its
// staleness clock, whether the task went in or was already waiting there.
func (r *IndexReconciler) resubmit(ctx context.Context, req models.IndexRequest) {
	err := r.enqueue.Enqueue(ctx, req.Spec())
	switch {
	case errors.Is(err, queue.ErrTaskPending):
		r.log.Info("Stale index request still waiting in queue", "index", req.ID, "requested_at", req.RequestedAt)
	case err != nil:
		r.log.Warn("Stale index request not resubmitted", "index", req.ID, "error", err)
		return
	default:
		r.log.Info("Stale index request resubmitted", "index", req.ID, "requested_at", req.RequestedAt)
	}

	if err := r.status.SetStatus(ctx, req.ID, queue.StatusUpdate{
		Status:   models.IndexQueued,
		Attempts: req.Attempts,
		At:       r.now(),
	}); err != nil {
		r.log.Warn("Index status not recorded", "index", req.ID, "error", err)
	}
}

type CronService struct {
	scheduler  *gocron.Scheduler
	reconciler *IndexReconciler
	interval   time.Duration
	log        *slog.Logger
}

func NewCronService(reconciler *IndexReconciler, interval time.Duration, log *slog.Logger) *CronService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CronService{
		scheduler:  s,
		reconciler: reconciler,
		interval:   interval,
		log:        log,
	}
}

func (c *CronService) Start() error {
	_, err := c.scheduler.Every(c.interval).Tag(reconcileTag).SingletonMode().Do(c.runReconcile)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", reconcileTag, err)
	}

	c.log.Info("Starting index reconciler", "interval", c.interval.String())
	c.scheduler.StartAsync()
	return nil
}

func (c *CronService) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if err := c.reconciler.Reconcile(ctx); err != nil {
		c.log.Error("Index reconcile failed", "error", err)
	}
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
	c.log.Info("Stopped index reconciler")
}

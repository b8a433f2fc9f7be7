package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"habit-tracker/internal/query"
	"habit-tracker/models"
)

var (
	ErrRateLimited = errors.New("queue: index request rate exceeded")
	// ErrTaskPending is returned by Enqueue when a live task for the index
	// already sits in the queue.
	ErrTaskPending = errors.New("queue: index task already pending")
)

// Enqueuer is the part of *asynq.Client the requester uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of *asynq.Inspector the requester uses to find
// and remove finished tasks that still hold an index's task ID.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

type RequesterConfig struct {
	// RatePerSecond bounds how often new requests are filed.
	RatePerSecond float64
	Burst         int
	MaxRetry      int
}

// Requester files index requests: it records them in the status store and
// hands the build to the worker through the task queue.
type Requester struct {
	client    Enqueuer
	inspector TaskInspector
	status    StatusStore
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	maxRetry  int
	log       *slog.Logger
	now       func() time.Time
}

func NewRequester(client Enqueuer, inspector TaskInspector, status StatusStore, cfg RequesterConfig, log *slog.Logger) *Requester {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "IndexQueue",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTaskPending)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Requester{
		client:    client,
		inspector: inspector,
		status:    status,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker:   breaker,
		maxRetry:  cfg.MaxRetry,
		log:       log,
		now:       time.Now,
	}
}

func (r *Requester) RequestIndex(ctx context.Context, spec query.IndexSpec) error {
	if !r.limiter.Allow() {
		return ErrRateLimited
	}

	now := r.now()
	prev, err := r.status.Touch(ctx, spec, now)
	if err != nil {
		return err
	}

	// A finished request is started over; an in-flight one only gets counted.
	if prev != nil && (prev.Status == models.IndexReady || prev.Status == models.IndexFailed) {
		if err := r.status.SetStatus(ctx, spec.Key(), StatusUpdate{Status: models.IndexQueued, At: now}); err != nil {
			return err
		}
	}

	if err := r.Enqueue(ctx, spec); err != nil && !errors.Is(err, ErrTaskPending) {
		return err
	}
	return nil
}

// Enqueue submits the build task. When the task ID is still held by a task
// that ran out of retries (or completed and is retained) that task is deleted
// and the build submitted again; a live task yields ErrTaskPending.
func (r *Requester) Enqueue(ctx context.Context, spec query.IndexSpec) error {
	task, err := NewProvisionIndexTask(spec, r.maxRetry)
	if err != nil {
		return err
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		info, err := r.client.EnqueueContext(ctx, task)
		if isConflict(err) {
			cleared, cerr := r.clearFinished(spec.Key())
			if cerr != nil {
				return nil, cerr
			}
			if !cleared {
				r.log.Debug("Index task already pending", "index", spec.Key())
				return nil, ErrTaskPending
			}
			info, err = r.client.EnqueueContext(ctx, task)
			if isConflict(err) {
				return nil, ErrTaskPending
			}
		}
		if err != nil {
			return nil, err
		}
		r.log.Info("Index task enqueued", "index", spec.Key(), "task_id", info.ID, "queue", info.Queue)
		return info, nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", spec.Key(), err)
	}
	return nil
}

// clearFinished reports whether the task ID id is free to use again,
// deleting the archived or completed task holding it.
func (r *Requester) clearFinished(id string) (bool, error) {
	if r.inspector == nil {
		return false, nil
	}

	info, err := r.inspector.GetTaskInfo(QueueLow, id)
	if isGone(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect task %s: %w", id, err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}

	if err := r.inspector.DeleteTask(QueueLow, id); err != nil && !isGone(err) {
		return false, fmt.Errorf("delete %s task %s: %w", info.State, id, err)
	}
	r.log.Info("Removed finished index task", "index", id, "state", info.State.String())
	return true, nil
}

func isConflict(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}

func isGone(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound)
}

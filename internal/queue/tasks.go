package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"habit-tracker/internal/query"
	"habit-tracker/models"
)

const (
	TaskProvisionIndex = "index:provision"

	// QueueLow carries index builds; they are never urgent.
	QueueLow = "low"

	provisionTimeout = 10 * time.Minute
)

type ProvisionIndexPayload struct {
	Collection string             `json:"collection"`
	Fields     []query.IndexField `json:"fields"`
	Equality   int                `json:"equality,omitempty"`
}

func (p ProvisionIndexPayload) Spec() query.IndexSpec {
	return query.IndexSpec{Collection: p.Collection, Fields: p.Fields, Equality: p.Equality}
}

// NewProvisionIndexTask builds a task whose ID is the index key, so a second
// request for the same index while one is pending is rejected by the broker.
func NewProvisionIndexTask(spec query.IndexSpec, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(ProvisionIndexPayload{
		Collection: spec.Collection,
		Fields:     spec.Fields,
		Equality:   spec.Equality,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProvisionIndex,
		payload,
		asynq.TaskID(spec.Key()),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(provisionTimeout),
		asynq.Queue(QueueLow),
	), nil
}

// RetryDelay backs off exponentially from 30s, capped at 10 minutes.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	const (
		base     = 30 * time.Second
		maxDelay = 10 * time.Minute
	)
	if n < 0 {
		n = 0
	}
	if n >= 5 {
		return maxDelay
	}
	d := base << uint(n)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// IndexBuilder creates indexes on the document store.
type IndexBuilder interface {
	EnsureIndex(ctx context.Context, spec query.IndexSpec) (string, error)
}

type TaskProcessor struct {
	builder IndexBuilder
	status  StatusStore
	log     *slog.Logger
	now     func() time.Time
}

func NewTaskProcessor(builder IndexBuilder, status StatusStore, log *slog.Logger) *TaskProcessor {
	return &TaskProcessor{
		builder: builder,
		status:  status,
		log:     log,
		now:     time.Now,
	}
}

func (p *TaskProcessor) ProvisionIndex(ctx context.Context, t *asynq.Task) error {
	var payload ProvisionIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.Collection == "" || len(payload.Fields) == 0 {
		return fmt.Errorf("empty index spec: %w", asynq.SkipRetry)
	}

	spec := payload.Spec()
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	attempt := retried + 1

	p.log.Info("Provisioning index", "index", spec.Key(), "attempt", attempt)
	p.setStatus(ctx, spec.Key(), StatusUpdate{Status: models.IndexBuilding, Attempts: attempt})

	name, err := p.builder.EnsureIndex(ctx, spec)
	if err != nil {
		status := models.IndexRetrying
		if retried >= maxRetry {
			status = models.IndexFailed
		}
		p.setStatus(ctx, spec.Key(), StatusUpdate{Status: status, Attempts: attempt, LastError: err.Error()})
		p.log.Warn("Index provisioning failed", "index", spec.Key(), "attempt", attempt, "status", status, "error", err)
		return err
	}

	p.setStatus(ctx, spec.Key(), StatusUpdate{Status: models.IndexReady, Attempts: attempt})
	p.log.Info("Index ready", "index", spec.Key(), "name", name)
	return nil
}

// setStatus records progress; a status write failure must not fail the build.
func (p *TaskProcessor) setStatus(ctx context.Context, key string, u StatusUpdate) {
	u.At = p.now()
	if err := p.status.SetStatus(ctx, key, u); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn("Index status not recorded", "index", key, "status", u.Status, "error", err)
	}
}

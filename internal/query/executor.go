package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reader runs one read against a collection and returns the raw documents in
// store order.
type Reader interface {
	Read(ctx context.Context, collection string, constraints []Constraint) ([]bson.Raw, error)
}

// IndexRequester files a request for a missing index. It must return quickly;
// the index itself is built elsewhere.
type IndexRequester interface {
	RequestIndex(ctx context.Context, spec IndexSpec) error
}

// Outcome names the path a read took.
type Outcome string

const (
	OutcomePrimary  Outcome = "primary"
	OutcomeFallback Outcome = "fallback"
	OutcomeEmpty    Outcome = "empty"
)

// Observer is told how every read ended.
type Observer func(collection string, outcome Outcome)

const defaultRequestTimeout = 2 * time.Second

// Executor runs reads with degraded-mode fallback and is safe for concurrent
// use. Index requests are filed in the background, at most one per index at a
// time; Close waits for those still running.
type Executor struct {
	reader         Reader
	requester      IndexRequester
	log            *slog.Logger
	tracer         trace.Tracer
	observe        Observer
	requestTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup
}

type Option func(*Executor)

func WithIndexRequester(r IndexRequester) Option {
	return func(e *Executor) { e.requester = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observe = o }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(e *Executor) { e.requestTimeout = d }
}

func NewExecutor(reader Reader, opts ...Option) *Executor {
	e := &Executor{
		reader:         reader,
		log:            slog.Default(),
		tracer:         otel.Tracer("habit-tracker/query"),
		observe:        func(string, Outcome) {},
		requestTimeout: defaultRequestTimeout,
		inflight:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute reads collection with the primary constraints. When the store
// reports a missing index it starts an index request without waiting for it,
// reads again with the fallback constraints and keeps the records accepted by
// keep (all of them when keep is nil). Every other failure yields an empty slice: callers must
// read "empty" as "temporarily unavailable", not "no matches".
func Execute[T any](ctx context.Context, e *Executor, collection string, primary, fallback []Constraint, keep func(T) bool) []T {
	ctx, span := e.tracer.Start(ctx, "query.execute", trace.WithAttributes(
		attribute.String("db.collection", collection),
	))
	defer span.End()

	raws, err := e.reader.Read(ctx, collection, primary)
	if err == nil {
		records, err := decodeAll[T](raws)
		if err != nil {
			e.fail(span, collection, "decode primary records", err)
			return []T{}
		}
		e.finish(span, collection, OutcomePrimary)
		return records
	}

	if !errors.Is(err, ErrIndexMissing) {
		e.fail(span, collection, "primary read failed", err)
		return []T{}
	}

	e.log.Info("Missing index, using fallback query",
		"collection", collection,
		"primary", Describe(primary),
		"fallback", Describe(fallback),
	)
	e.requestIndex(ctx, collection, primary, err)

	raws, err = e.reader.Read(ctx, collection, fallback)
	if err != nil {
		e.fail(span, collection, "fallback read failed", err)
		return []T{}
	}

	records, err := decodeAll[T](raws)
	if err != nil {
		e.fail(span, collection, "decode fallback records", err)
		return []T{}
	}

	if keep != nil {
		kept := records[:0]
		for _, r := range records {
			if keep(r) {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	e.finish(span, collection, OutcomeFallback)
	return records
}

// Close waits for background index requests to finish.
func (e *Executor) Close() {
	e.wg.Wait()
}

func (e *Executor) requestIndex(ctx context.Context, collection string, primary []Constraint, cause error) {
	if e.requester == nil {
		return
	}

	var missing *IndexMissingError
	var spec IndexSpec
	if errors.As(cause, &missing) && len(missing.Spec.Fields) > 0 {
		spec = missing.Spec
	} else if derived, ok := RequiredIndex(collection, primary); ok {
		spec = derived
	} else {
		return
	}

	key := spec.Key()
	e.mu.Lock()
	if e.inflight[key] {
		e.mu.Unlock()
		return
	}
	e.inflight[key] = true
	e.mu.Unlock()

	// The caller's cancellation must not abort the request, only bound it.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.requestTimeout)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			cancel()
			e.mu.Lock()
			delete(e.inflight, key)
			e.mu.Unlock()
		}()

		if err := e.requester.RequestIndex(rctx, spec); err != nil {
			e.log.Warn("Index request not filed", "index", key, "error", err)
			return
		}
		e.log.Debug("Index request filed", "index", key)
	}()
}

func (e *Executor) fail(span trace.Span, collection, msg string, err error) {
	e.log.Warn("Query returned no records: "+msg, "collection", collection, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	e.finish(span, collection, OutcomeEmpty)
}

func (e *Executor) finish(span trace.Span, collection string, outcome Outcome) {
	span.SetAttributes(attribute.String("query.outcome", string(outcome)))
	e.observe(collection, outcome)
}

func decodeAll[T any](raws []bson.Raw) ([]T, error) {
	records := make([]T, 0, len(raws))
	for i, raw := range raws {
		var record T
		if err := bson.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"habit-tracker/internal/query"
)

func countingLister(keys map[string][][]query.IndexField, calls *int32) ListFunc {
	return func(_ context.Context, collection string) ([][]query.IndexField, error) {
		atomic.AddInt32(calls, 1)
		return keys[collection], nil
	}
}

var habitsByUser = []query.IndexField{
	{Path: "user_id", Order: query.Asc},
	{Path: "deleted", Order: query.Asc},
	{Path: "created_at", Order: query.Desc},
}

func TestCatalogCachesUntilTTL(t *testing.T) {
	var calls int32
	catalog := NewIndexCatalog(countingLister(map[string][][]query.IndexField{
		"habits": {habitsByUser},
	}, &calls), time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	catalog.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := catalog.Keys(ctx, "habits")
	require.NoError(t, err)
	_, err = catalog.Keys(ctx, "habits")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, err = catalog.Keys(ctx, "habits")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)

	catalog.Invalidate("habits")
	_, err = catalog.Keys(ctx, "habits")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
}

func TestCatalogSlowRefreshDoesNotBlockOtherCollections(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	catalog := NewIndexCatalog(func(_ context.Context, collection string) ([][]query.IndexField, error) {
		atomic.AddInt32(&calls, 1)
		if collection == "habit_logs" {
			started <- struct{}{}
			<-release
		}
		return [][]query.IndexField{habitsByUser}, nil
	}, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := catalog.Keys(ctx, "habit_logs")
			assert.NoError(t, err)
			assert.Len(t, keys, 1)
		}()
	}
	<-started

	done := make(chan error, 1)
	go func() {
		_, err := catalog.Keys(ctx, "habits")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("habits lookup waited for the habit_logs refresh")
	}

	close(release)
	wg.Wait()
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "one list call per collection")
}

func TestCatalogListErrorIsNotCached(t *testing.T) {
	fail := true
	catalog := NewIndexCatalog(func(context.Context, string) ([][]query.IndexField, error) {
		if fail {
			return nil, errors.New("not primary")
		}
		return nil, nil
	}, time.Minute)

	_, err := catalog.Keys(context.Background(), "habits")
	require.Error(t, err)

	fail = false
	_, err = catalog.Keys(context.Background(), "habits")
	assert.NoError(t, err)
}

func TestStoreReadRefusesUncoveredRead(t *testing.T) {
	var calls int32
	store := NewStore(nil, NewIndexCatalog(countingLister(nil, &calls), time.Minute))

	_, err := store.Read(context.Background(), "habits", []query.Constraint{
		query.Where("user_id", query.OpEq, "el"),
		query.OrderBy("created_at", query.Desc),
	})

	require.ErrorIs(t, err, query.ErrIndexMissing)
	var missing *query.IndexMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "habits.user_id_1_created_at_-1", missing.Spec.Key())
}

func TestClassifyServerErrors(t *testing.T) {
	var calls int32
	catalog := NewIndexCatalog(countingLister(nil, &calls), time.Hour)
	store := NewStore(nil, catalog)
	constraints := []query.Constraint{
		query.Where("user_id", query.OpEq, "el"),
		query.OrderBy("created_at", query.Desc),
	}

	_, err := catalog.Keys(context.Background(), "habits")
	require.NoError(t, err)

	err = store.classify("habits", constraints, mongo.CommandError{Code: codeNoQueryExecutionPlans, Message: "planner returned error"})
	assert.ErrorIs(t, err, query.ErrIndexMissing)

	_, err = catalog.Keys(context.Background(), "habits")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls, "catalog entry dropped after the server disagreed")

	err = store.classify("habits", constraints, mongo.CommandError{Code: codeIndexNotFound})
	assert.ErrorIs(t, err, query.ErrIndexMissing)

	err = store.classify("habits", constraints, mongo.CommandError{Code: 2, Message: "index not found"})
	assert.NotErrorIs(t, err, query.ErrIndexMissing, "message text alone is not a signal")
}

func TestBuildFindGroupsRangesPerField(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)

	filter, opts := buildFind([]query.Constraint{
		query.Where("user_id", query.OpEq, "el"),
		query.Where("date", query.OpGte, start),
		query.Where("date", query.OpLte, end),
		query.Where("deleted", query.OpNe, true),
		query.OrderBy("date", query.Desc),
		query.Limit(20),
	})

	assert.Equal(t, bson.D{
		{Key: "user_id", Value: bson.D{{Key: "$eq", Value: "el"}}},
		{Key: "date", Value: bson.D{{Key: "$gte", Value: start}, {Key: "$lte", Value: end}}},
		{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}},
	}, filter)
	assert.Equal(t, bson.D{{Key: "date", Value: -1}}, opts.Sort)
	require.NotNil(t, opts.Limit)
	assert.EqualValues(t, 20, *opts.Limit)
}

func TestParseKeys(t *testing.T) {
	doc, err := bson.Marshal(bson.D{{Key: "user_id", Value: int32(1)}, {Key: "created_at", Value: float64(-1)}})
	require.NoError(t, err)

	fields, ok := parseKeys(doc)
	require.True(t, ok)
	assert.Equal(t, []query.IndexField{
		{Path: "user_id", Order: query.Asc},
		{Path: "created_at", Order: query.Desc},
	}, fields)

	text, err := bson.Marshal(bson.D{{Key: "name", Value: "text"}})
	require.NoError(t, err)
	_, ok = parseKeys(text)
	assert.False(t, ok)
}

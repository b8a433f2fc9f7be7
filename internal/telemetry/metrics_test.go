package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/query"
)

type stubRequester struct {
	calls int
	err   error
}

func (s *stubRequester) RequestIndex(context.Context, query.IndexSpec) error {
	s.calls++
	return s.err
}

func TestWrapRequesterPassesThrough(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	next := &stubRequester{err: errors.New("rate limited")}
	r := m.WrapRequester(next)

	err = r.RequestIndex(context.Background(), query.IndexSpec{Collection: "habits"})
	assert.EqualError(t, err, "rate limited")
	assert.Equal(t, 1, next.calls)
}

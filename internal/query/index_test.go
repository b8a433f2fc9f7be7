package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredIndexOrdersEqualitySortRange(t *testing.T) {
	spec, ok := RequiredIndex("habit_logs", []Constraint{
		Where("date", OpGte, "2024-05-01"),
		OrderBy("date", Desc),
		Where("user_id", OpEq, "el"),
		Where("completed", OpEq, true),
	})

	assert.True(t, ok)
	assert.Equal(t, "habit_logs", spec.Collection)
	assert.Equal(t, []IndexField{
		{Path: "user_id", Order: Asc},
		{Path: "completed", Order: Asc},
		{Path: "date", Order: Desc},
	}, spec.Fields)
	assert.Equal(t, 2, spec.Equality)
	assert.Equal(t, "habit_logs.user_id_1_completed_1_date_-1", spec.Key())
}

func TestRequiredIndexSingleFieldNotNeeded(t *testing.T) {
	_, ok := RequiredIndex("habits", []Constraint{Where("user_id", OpEq, "el"), Limit(10)})
	assert.False(t, ok)
}

func TestCoveredBy(t *testing.T) {
	spec := IndexSpec{Collection: "habits", Fields: []IndexField{
		{Path: "user_id", Order: Asc},
		{Path: "created_at", Order: Desc},
	}}

	tests := []struct {
		name string
		keys []IndexField
		want bool
	}{
		{"exact", []IndexField{{"user_id", Asc}, {"created_at", Desc}}, true},
		{"reversed", []IndexField{{"user_id", Desc}, {"created_at", Asc}}, true},
		{"longer prefix", []IndexField{{"user_id", Asc}, {"created_at", Desc}, {"name", Asc}}, true},
		{"mixed direction", []IndexField{{"user_id", Asc}, {"created_at", Asc}}, false},
		{"wrong order", []IndexField{{"created_at", Desc}, {"user_id", Asc}}, false},
		{"too short", []IndexField{{"user_id", Asc}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.CoveredBy(tt.keys))
		})
	}
}

func TestCoveredByEqualityFieldsInAnyOrder(t *testing.T) {
	spec, ok := RequiredIndex("habits", []Constraint{
		Where("user_id", OpEq, "el"),
		Where("deleted", OpEq, false),
		OrderBy("created_at", Desc),
	})
	assert.True(t, ok)

	tests := []struct {
		name string
		keys []IndexField
		want bool
	}{
		{"declared order", []IndexField{{"user_id", Asc}, {"deleted", Asc}, {"created_at", Desc}}, true},
		{"equality fields swapped", []IndexField{{"deleted", Asc}, {"user_id", Asc}, {"created_at", Desc}}, true},
		{"equality direction ignored", []IndexField{{"deleted", Desc}, {"user_id", Asc}, {"created_at", Desc}}, true},
		{"sort reversed", []IndexField{{"deleted", Asc}, {"user_id", Asc}, {"created_at", Asc}}, true},
		{"sort field inside equality prefix", []IndexField{{"user_id", Asc}, {"created_at", Desc}, {"deleted", Asc}}, false},
		{"unrelated field in prefix", []IndexField{{"name", Asc}, {"user_id", Asc}, {"created_at", Desc}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.CoveredBy(tt.keys))
		})
	}
}

func TestIndexMissingErrorMatches(t *testing.T) {
	cause := errors.New("server said no")
	err := &IndexMissingError{Spec: IndexSpec{Collection: "habits", Fields: []IndexField{{"user_id", Asc}}}, Err: cause}

	assert.ErrorIs(t, err, ErrIndexMissing)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "habits needs index user_id_1")
}

func TestDescribe(t *testing.T) {
	got := Describe([]Constraint{Where("user_id", OpEq, "A"), OrderBy("created_at", Desc), Limit(5)})
	assert.Equal(t, "[user_id == A, orderBy(created_at desc), limit(5)]", got)
}

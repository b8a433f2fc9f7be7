package models

import (
	"time"

	"habit-tracker/internal/query"
)

// Provisioning states of an index request.
const (
	IndexQueued   = "queued"
	IndexBuilding = "building"
	IndexRetrying = "retrying"
	IndexReady    = "ready"
	IndexFailed   = "failed"
)

type IndexRequest struct {
	ID           string             `bson:"_id" json:"id"`
	Collection   string             `bson:"collection" json:"collection"`
	Fields       []query.IndexField `bson:"fields" json:"fields"`
	Equality     int                `bson:"equality,omitempty" json:"equality,omitempty"`
	Status       string             `bson:"status" json:"status"`
	Attempts     int                `bson:"attempts" json:"attempts"`
	RequestCount int                `bson:"request_count" json:"request_count"`
	LastError    string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	RequestedAt  time.Time          `bson:"requested_at" json:"requested_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

func (r *IndexRequest) Spec() query.IndexSpec {
	return query.IndexSpec{Collection: r.Collection, Fields: r.Fields, Equality: r.Equality}
}

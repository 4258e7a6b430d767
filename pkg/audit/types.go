package audit

import (
	"context"
	"time"
)

// Record is the audit trail of one authorize decision.
type Record struct {
	// Identity
	ID        string `json:"id"`         // UUID v4
	RequestID string `json:"request_id"` // From the decision server

	Time     time.Time     `json:"time"`     // When the request was received
	Duration time.Duration `json:"duration"` // Time spent deciding

	// Decision
	Generation string   `json:"generation"`        // Rule set generation that decided
	Decision   string   `json:"decision"`          // "allow" or "deny"
	Rule       string   `json:"rule,omitempty"`    // Rule that decided, empty for the default
	Reason     string   `json:"reason,omitempty"`  // Deny reason
	Backend    string   `json:"backend,omitempty"` // Backend chosen by route rules
	Errors     []string `json:"errors,omitempty"`  // Rule evaluation errors

	// Request
	Method        string `json:"method"`
	Host          string `json:"host"`
	Path          string `json:"path"`
	SourceAddress string `json:"source_address"`

	// LLM, empty when no rule reads llm
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	InputTokens int    `json:"input_tokens,omitempty"`
}

// Order is the sort order of query results by time.
type Order string

const (
	OrderNewest Order = "desc"
	OrderOldest Order = "asc"
)

// DefaultQueryLimit caps results when Query.Limit is unset.
const DefaultQueryLimit = 100

// Query defines filter parameters for decision records. Zero fields match
// everything.
type Query struct {
	// Time range
	Since *time.Time `json:"since,omitempty"` // Inclusive
	Until *time.Time `json:"until,omitempty"` // Exclusive

	// Filters
	Decision   string `json:"decision,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Generation string `json:"generation,omitempty"`
	RequestID  string `json:"request_id,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Order defaults to OrderNewest.
	Order Order `json:"order,omitempty"`
}

func (q *Query) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultQueryLimit
}

func (q *Query) order() Order {
	if q.Order == OrderOldest {
		return OrderOldest
	}
	return OrderNewest
}

// Storage defines the interface for decision log backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching query. It returns an empty slice if no
	// records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching query. Limit and Offset
	// are ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records older than cutoff and returns how many
	// were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOldest removes the n oldest records and returns how many were
	// removed.
	DeleteOldest(ctx context.Context, n int64) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

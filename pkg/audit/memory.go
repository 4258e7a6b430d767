package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps records in process memory. Records are lost on
// restart, so it suits tests and short-lived deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*Record // ordered by Time, oldest first
	closed  bool
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageError("memory", "store", ErrClosed)
	}
	rc := copyRecord(record)

	// Records usually arrive in time order; insert after any equal times.
	i := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].Time.After(rc.Time)
	})
	s.records = append(s.records, nil)
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = rc
	return nil
}

// Query returns copies of the records matching query.
func (s *MemoryStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageError("memory", "query", ErrClosed)
	}

	matched := []*Record{}
	for _, r := range s.records {
		if matches(r, query) {
			matched = append(matched, r)
		}
	}
	if query.order() == OrderNewest {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if query.Offset >= len(matched) {
		return []*Record{}, nil
	}
	matched = matched[query.Offset:]
	if limit := query.limit(); len(matched) > limit {
		matched = matched[:limit]
	}

	results := make([]*Record, len(matched))
	for i, r := range matched {
		results[i] = copyRecord(r)
	}
	return results, nil
}

// Count returns the number of records matching query.
func (s *MemoryStorage) Count(ctx context.Context, query *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, NewStorageError("memory", "count", ErrClosed)
	}
	var n int64
	for _, r := range s.records {
		if matches(r, query) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes records older than cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStorageError("memory", "delete", ErrClosed)
	}
	i := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Time.Before(cutoff)
	})
	s.records = append([]*Record(nil), s.records[i:]...)
	return int64(i), nil
}

// DeleteOldest removes the n oldest records.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStorageError("memory", "delete", ErrClosed)
	}
	if n <= 0 {
		return 0, nil
	}
	if n > int64(len(s.records)) {
		n = int64(len(s.records))
	}
	s.records = append([]*Record(nil), s.records[n:]...)
	return n, nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.closed = true
	return nil
}

// matches checks if a record matches the query filters.
func matches(r *Record, q *Query) bool {
	if q.Since != nil && r.Time.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !r.Time.Before(*q.Until) {
		return false
	}
	if q.Decision != "" && r.Decision != q.Decision {
		return false
	}
	if q.Rule != "" && r.Rule != q.Rule {
		return false
	}
	if q.Generation != "" && r.Generation != q.Generation {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	return true
}

func copyRecord(r *Record) *Record {
	rc := *r
	if r.Errors != nil {
		rc.Errors = append([]string(nil), r.Errors...)
	}
	return &rc
}

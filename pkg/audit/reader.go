package audit

import (
	"context"
	"slices"
)

// Reader queries the audit trail
type Reader struct {
	storage Storage
}

// NewReader creates a new audit reader
func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// Find retrieves audit events matching criteria in ascending Seq order.
func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	events, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if !slices.IsSortedFunc(events, bySeq) {
		slices.SortStableFunc(events, bySeq)
	}
	return events, nil
}

// FindAfter pages through the trail: it returns up to limit events with
// Seq greater than cursor, plus the cursor for the next page (0 when done).
func (r *Reader) FindAfter(ctx context.Context, criteria Criteria, cursor int64, limit int) ([]Event, int64, error) {
	criteria.AfterSeq = cursor
	criteria.Limit = limit

	events, err := r.Find(ctx, criteria)
	if err != nil {
		return nil, 0, err
	}

	var next int64
	if limit > 0 && len(events) == limit {
		next = events[len(events)-1].Seq
	}
	return events, next, nil
}

// Count returns the count of audit events matching the criteria.
// If the storage implements StorageCounter, it uses the optimized Count method.
// Otherwise, it falls back to loading all records and counting them in memory.
func (r *Reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if counter, ok := r.storage.(StorageCounter); ok {
		return counter.Count(ctx, criteria)
	}

	criteria.Limit = 0
	events, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

func bySeq(a, b Event) int {
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

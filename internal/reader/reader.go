// Package reader is the read-only query façade over the stop cache.
// It never touches the network.
package reader

import (
	"context"
	"sync"

	"forky/internal/storage"
)

// StopStore is the slice of the cache the reader consumes.
type StopStore interface {
	PageStops(ctx context.Context, limit, offset int) ([]storage.Stop, error)
	SearchStops(ctx context.Context, query string, limit int) ([]storage.Stop, error)
}

// Reader serves paged and searched views of the stop cache. It also
// keeps one session cursor for incremental loading: LoadNext returns
// consecutive pages until the cache is exhausted, and Reset rewinds to
// the start (the sync engine calls it after every successful refresh).
type Reader struct {
	store    StopStore
	pageSize int

	mu     sync.Mutex
	offset int
	more   bool
}

// New creates a Reader with the given session page size.
func New(store StopStore, pageSize int) *Reader {
	return &Reader{store: store, pageSize: pageSize, more: true}
}

// Page returns one page ordered by stop id ascending. It does not move
// the session cursor.
func (r *Reader) Page(ctx context.Context, limit, offset int) ([]storage.Stop, error) {
	return r.store.PageStops(ctx, limit, offset)
}

// Search returns stops matching query by substring over id, name and
// lines.
func (r *Reader) Search(ctx context.Context, query string, limit int) ([]storage.Stop, error) {
	return r.store.SearchStops(ctx, query, limit)
}

// LoadNext returns the next page of the session cursor and advances it.
// A short or empty page marks the session as exhausted.
func (r *Reader) LoadNext(ctx context.Context) ([]storage.Stop, error) {
	r.mu.Lock()
	offset := r.offset
	r.mu.Unlock()

	stops, err := r.store.PageStops(ctx, r.pageSize, offset)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Only advance if no concurrent Reset rewound the cursor.
	if r.offset == offset {
		r.offset += len(stops)
		if len(stops) < r.pageSize {
			r.more = false
		}
	}
	r.mu.Unlock()
	return stops, nil
}

// More reports whether the session cursor has pages left.
func (r *Reader) More() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.more
}

// Reset rewinds the session cursor to the first page.
func (r *Reader) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset = 0
	r.more = true
}

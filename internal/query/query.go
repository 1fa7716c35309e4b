// Package query holds the {data, loading, error} state the UI layer reads,
// refreshed on demand from a FormRepository.
package query

import (
	"context"
	"sync"

	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"
)

// State is a snapshot of a query
type State[T any] struct {
	Data    T
	Loading bool
	Err     error
	Loaded  bool // at least one fetch completed successfully
}

// Fetcher loads the data for a query
type Fetcher[T any] func(ctx context.Context) (T, error)

// Query caches the result of a fetcher. A nil fetcher disables the query:
// Refresh does nothing and the state stays empty.
type Query[T any] struct {
	mu    sync.Mutex
	fetch Fetcher[T]
	state State[T]
	gen   uint64
	subs  map[int]func(State[T])
	next  int
}

func New[T any](fetch Fetcher[T]) *Query[T] {
	return &Query[T]{fetch: fetch, subs: make(map[int]func(State[T]))}
}

// Enabled reports whether the query has a fetcher
func (q *Query[T]) Enabled() bool {
	return q.fetch != nil
}

func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers fn for every state change. The returned func removes it.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	q.mu.Lock()
	id := q.next
	q.next++
	q.subs[id] = fn
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		delete(q.subs, id)
		q.mu.Unlock()
	}
}

// Refresh refetches. The previous data stays visible while loading; on error
// it is kept and Err is set. When refreshes overlap only the latest one
// updates the state.
func (q *Query[T]) Refresh(ctx context.Context) error {
	if q.fetch == nil {
		return nil
	}

	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.state.Loading = true
	q.state.Err = nil
	snapshot, subs := q.snapshotLocked()
	q.mu.Unlock()
	notify(subs, snapshot)

	data, err := q.fetch(ctx)

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return err
	}
	q.state.Loading = false
	if err != nil {
		q.state.Err = err
	} else {
		q.state.Data = data
		q.state.Loaded = true
	}
	snapshot, subs = q.snapshotLocked()
	q.mu.Unlock()
	notify(subs, snapshot)
	return err
}

func (q *Query[T]) snapshotLocked() (State[T], []func(State[T])) {
	subs := make([]func(State[T]), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	return q.state, subs
}

// subscribers run outside the lock so they may read State
func notify[T any](subs []func(State[T]), s State[T]) {
	for _, fn := range subs {
		fn(s)
	}
}

// ListQuery lists every form of repo
func ListQuery(repo formsRepo.FormRepository) *Query[[]models.FormSummary] {
	return New(func(ctx context.Context) ([]models.FormSummary, error) {
		return repo.List(ctx)
	})
}

// GetQuery loads one form. An empty name yields a disabled query: no data,
// not loading, never fetched.
func GetQuery(repo formsRepo.FormRepository, name string) *Query[*models.FormDetail] {
	if name == "" {
		return New[*models.FormDetail](nil)
	}
	return New(func(ctx context.Context) (*models.FormDetail, error) {
		return repo.Get(ctx, name)
	})
}

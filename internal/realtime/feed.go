package realtime

import (
	"sync"

	"github.com/stemsi/classqa/internal/model"
)

// Feed accumulates update events into an ordered list. Items keep the
// position of their first arrival; a later update with the same key
// replaces the item in place.
type Feed[T any] struct {
	mu    sync.Mutex
	key   func(T) string
	order []string
	items map[string]T
}

// NewFeed creates a Feed keyed by key, seeded with initial.
func NewFeed[T any](key func(T) string, initial []T) *Feed[T] {
	f := &Feed[T]{key: key, items: make(map[string]T)}
	for _, it := range initial {
		f.Apply(it)
	}
	return f
}

// NewQuestionFeed creates a Feed of questions keyed by ID.
func NewQuestionFeed(initial []model.Question) *Feed[model.Question] {
	return NewFeed(func(q model.Question) string { return q.ID }, initial)
}

// NewAnswerFeed creates a Feed of answers keyed by ID.
func NewAnswerFeed(initial []model.Answer) *Feed[model.Answer] {
	return NewFeed(func(a model.Answer) string { return a.ID }, initial)
}

// Apply inserts or replaces it and reports whether it was new.
func (f *Feed[T]) Apply(it T) bool {
	k := f.key(it)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.items[k]
	if !exists {
		f.order = append(f.order, k)
	}
	f.items[k] = it
	return !exists
}

// Items returns a copy of the list in arrival order.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, 0, len(f.order))
	for _, k := range f.order {
		out = append(out, f.items[k])
	}
	return out
}

// Len returns the number of distinct items.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Backfill places earlier items ahead of the current list, in their given
// order. Items already present keep their value and position.
func (f *Feed[T]) Backfill(earlier []T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := make([]string, 0, len(earlier)+len(f.order))
	for _, it := range earlier {
		k := f.key(it)
		if _, ok := f.items[k]; ok {
			continue
		}
		f.items[k] = it
		order = append(order, k)
	}
	f.order = append(order, f.order...)
}

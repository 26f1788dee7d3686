package realtime

import "sync"

// View is a local collection kept consistent by applied deltas. Only the
// initial fetch (Reset) and Apply mutate it, so every open session converges
// on the same rows.
//
// Apply semantics per op:
//   - inserted: append unless the id is already present (duplicate insert
//     notifications are no-ops)
//   - updated: replace the row with the matching id; insert when absent,
//     which self-heals a missed insert
//   - deleted: remove the row with the matching id; no-op when absent
type View[T any] struct {
	mu    sync.Mutex
	idOf  func(T) string
	order []string
	items map[string]T
}

// NewView builds an empty view keyed by idOf.
func NewView[T any](idOf func(T) string) *View[T] {
	return &View[T]{
		idOf:  idOf,
		items: make(map[string]T),
	}
}

// Reset replaces the whole collection, e.g. after a reconnect refetch.
func (v *View[T]) Reset(rows []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = v.order[:0]
	clear(v.items)
	for _, row := range rows {
		id := v.idOf(row)
		if _, exists := v.items[id]; !exists {
			v.order = append(v.order, id)
		}
		v.items[id] = row
	}
}

// Apply folds one delta into the collection.
func (v *View[T]) Apply(op Op, id string, row T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch op {
	case OpInserted:
		if _, exists := v.items[id]; exists {
			return
		}
		v.order = append(v.order, id)
		v.items[id] = row
	case OpUpdated:
		if _, exists := v.items[id]; !exists {
			v.order = append(v.order, id)
		}
		v.items[id] = row
	case OpDeleted:
		if _, exists := v.items[id]; !exists {
			return
		}
		delete(v.items, id)
		for i, existing := range v.order {
			if existing == id {
				v.order = append(v.order[:i], v.order[i+1:]...)
				break
			}
		}
	}
}

// Get returns the row with the given id.
func (v *View[T]) Get(id string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	row, ok := v.items[id]
	return row, ok
}

// Len returns the number of rows.
func (v *View[T]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}

// Snapshot returns the rows in arrival order.
func (v *View[T]) Snapshot() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	rows := make([]T, 0, len(v.order))
	for _, id := range v.order {
		rows = append(rows, v.items[id])
	}
	return rows
}

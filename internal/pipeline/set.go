// Package pipeline provides the workflow engine shared by the generation and
// grading agents: a keyed collection of work items with reducer-based merging,
// a concurrent per-item stage executor, and a graph driver with a single
// short-circuit gate.
package pipeline

// Item is one keyed unit of pipeline work.
type Item interface {
	Key() string
	IsEligible() bool
}

// Set is an ordered, keyed collection of work items. Order is arrival order,
// which is also the order used when truncating the eligible set.
type Set[T Item] struct {
	merge func(curr, upd T) T
	order []string
	items map[string]T
}

// NewSet builds a collection around the given merge reducer, seeded with the
// initial items.
func NewSet[T Item](merge func(curr, upd T) T, initial []T) *Set[T] {
	s := &Set[T]{merge: merge, items: map[string]T{}}
	s.Apply(initial)
	return s
}

// Apply folds a stage's partial update into the collection. Known ids are
// merged through the reducer, unknown ids are inserted, and ids the update
// does not mention are left untouched. Items without a key are dropped.
func (s *Set[T]) Apply(updates []T) {
	for _, upd := range updates {
		id := upd.Key()
		if id == "" {
			continue
		}
		if curr, ok := s.items[id]; ok {
			s.items[id] = s.merge(curr, upd)
			continue
		}
		s.order = append(s.order, id)
		s.items[id] = upd
	}
}

// Items returns every item in arrival order.
func (s *Set[T]) Items() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Eligible returns the items still open for costly work, in arrival order.
func (s *Set[T]) Eligible() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		if item := s.items[id]; item.IsEligible() {
			out = append(out, item)
		}
	}
	return out
}

// HasEligible reports whether any item is still open for costly work.
func (s *Set[T]) HasEligible() bool {
	for _, item := range s.items {
		if item.IsEligible() {
			return true
		}
	}
	return false
}

// Get looks an item up by id.
func (s *Set[T]) Get(id string) (T, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Len returns the number of items in the collection.
func (s *Set[T]) Len() int { return len(s.order) }

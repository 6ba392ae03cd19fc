package pipeline

import "time"

// GatePolicy bounds per-run external-API cost before expensive stages run.
type GatePolicy struct {
	// MaxItems truncates the eligible set to the first N items in arrival
	// order. Zero means unlimited. Arrival order is not a priority order,
	// so the cap carries no fairness guarantee across runs; this is a
	// known limitation kept from the original system.
	MaxItems int

	// AgeCutoff marks items older than MaxAge ineligible. The rule is part
	// of the contract surface but ships disabled.
	AgeCutoff bool
	MaxAge    time.Duration
}

// TooOld reports whether the age rule excludes an item created at the given
// time. Always false while the cutoff toggle is off.
func (p GatePolicy) TooOld(createdAt, now time.Time) bool {
	if !p.AgeCutoff || p.MaxAge <= 0 {
		return false
	}
	return now.Sub(createdAt) > p.MaxAge
}

// Truncate applies the MaxItems cap to a collection's eligible items and
// returns the updates marking the overflow. Items beyond the cap are skipped,
// not dropped: they stay in the collection carrying their skip reason, but
// like any ineligible item they are excluded from later stages, persistence
// included.
func Truncate[T Item](set *Set[T], max int, skip func(T) T) []T {
	if max <= 0 {
		return nil
	}
	eligible := set.Eligible()
	if len(eligible) <= max {
		return nil
	}

	updates := make([]T, 0, len(eligible)-max)
	for _, item := range eligible[max:] {
		updates = append(updates, skip(item))
	}
	return updates
}

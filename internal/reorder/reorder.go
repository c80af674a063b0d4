// Package reorder relocates one element of an ordered collection and
// renumbers positions. The same functions run on the optimistic client patch
// and in the store so both sides converge on one order.
package reorder

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

// Move returns a copy of items with the element at from moved to index to.
// to is clamped to [0, len-1]. items is not modified.
func Move[T any](items []T, from, to int) []T {
	out := slices.Clone(items)
	if from < 0 || from >= len(out) {
		return out
	}
	to = clamp(to, 0, len(out)-1)
	if from == to {
		return out
	}
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, moved)
}

// Jobs moves the job fromID to the 1-based position toOrder and renumbers
// every job to 1..N. The input is sorted by Order (then ID) first.
func Jobs(jobs []models.Job, fromID int64, toOrder int) ([]models.Job, error) {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, func(a, b models.Job) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	from := slices.IndexFunc(sorted, func(j models.Job) bool { return j.ID == fromID })
	if from < 0 {
		return nil, fmt.Errorf("reorder: job %d: %w", fromID, apperr.ErrNotFound)
	}
	out := Move(sorted, from, toOrder-1)
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// Shift maps a 1-based position before a move of from→to to its position
// after the move. Callers holding only a window of the list use it to patch
// positions without seeing the whole collection.
func Shift(pos, from, to int) int {
	switch {
	case pos == from:
		return to
	case from < to && pos > from && pos <= to:
		return pos - 1
	case to < from && pos >= to && pos < from:
		return pos + 1
	}
	return pos
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

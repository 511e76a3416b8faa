package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyDescription = errors.New("milestone description is required")
	ErrIndexOutOfRange  = errors.New("milestone index out of range")
)

// EmptyMilestonesPlaceholder is shown in place of an empty milestone list.
const EmptyMilestonesPlaceholder = "No milestones entered yet."

type Milestone struct {
	Date Date   `json:"date"`
	Desc string `json:"desc"`
}

// Milestones is kept in insertion order. Callers see it through Sorted.
type Milestones []Milestone

// Add appends a milestone. A description that is empty after trimming is
// rejected and the list is left unchanged. Duplicates are allowed.
func (m *Milestones) Add(date Date, desc string) error {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ErrEmptyDescription
	}
	*m = append(*m, Milestone{Date: date, Desc: desc})
	return nil
}

// Sorted returns the display order: ascending by date, ties in stored order.
func (m Milestones) Sorted() Milestones {
	order := m.displayOrder()
	out := make(Milestones, len(order))
	for i, idx := range order {
		out[i] = m[idx]
	}
	return out
}

// StorageIndex maps a position in Sorted() back to a position in m.
func (m Milestones) StorageIndex(displayIndex int) (int, error) {
	if displayIndex < 0 || displayIndex >= len(m) {
		return 0, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, displayIndex, len(m))
	}
	return m.displayOrder()[displayIndex], nil
}

// RemoveDisplayed deletes the milestones at the given display positions as
// one batch. Every index refers to the list as it was before the call; if any
// is out of range nothing is removed.
func (m *Milestones) RemoveDisplayed(displayIndices ...int) error {
	order := m.displayOrder()

	targets := make([]int, 0, len(displayIndices))
	seen := make(map[int]bool, len(displayIndices))
	for _, di := range displayIndices {
		if di < 0 || di >= len(order) {
			return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, di, len(order))
		}
		si := order[di]
		if !seen[si] {
			seen[si] = true
			targets = append(targets, si)
		}
	}

	// highest first so earlier deletions don't shift later ones
	sort.Sort(sort.Reverse(sort.IntSlice(targets)))
	list := *m
	for _, si := range targets {
		list = append(list[:si], list[si+1:]...)
	}
	*m = list
	return nil
}

func (m Milestones) displayOrder() []int {
	order := make([]int, len(m))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m[order[a]].Date.Before(m[order[b]].Date)
	})
	return order
}

// MarshalJSON encodes a nil list as [] rather than null.
func (m Milestones) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Milestone(m))
}

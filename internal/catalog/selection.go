package catalog

import (
	"fmt"
	"strings"
	"sync"
)

// Selection identifies a garment by group and 1-based position.
type Selection struct {
	Group    Group `json:"group"`
	Position int   `json:"position"`
}

// Title returns the info panel label for a selection.
func Title(sel Selection) string {
	return fmt.Sprintf("%s SHIRT %d", strings.ToUpper(string(sel.Group)), sel.Position)
}

// Product ID ranges used by the storefront. IDs below femaleIDBase address
// the male group directly; IDs above it address the female group.
const (
	femaleIDBase = 100
	maxProductID = 199
)

// FromProductID maps a storefront product ID to a selection.
// 1-99 map to male positions, 101-199 to female positions.
// The returned selection still has to be validated against a catalog.
func FromProductID(id int) (Selection, error) {
	switch {
	case id >= 1 && id < femaleIDBase:
		return Selection{Group: GroupMale, Position: id}, nil
	case id > femaleIDBase && id <= maxProductID:
		return Selection{Group: GroupFemale, Position: id - femaleIDBase}, nil
	default:
		return Selection{}, fmt.Errorf("%w: product id %d", ErrInvalidSelection, id)
	}
}

// Selector holds the active selection for one try-on session.
// Reads and writes are atomic with respect to each other.
type Selector struct {
	catalog *Catalog
	mu      sync.RWMutex
	current Selection
}

// NewSelector creates a Selector starting at initial, which must be valid.
func NewSelector(c *Catalog, initial Selection) (*Selector, error) {
	if err := c.Validate(initial); err != nil {
		return nil, err
	}
	return &Selector{catalog: c, current: initial}, nil
}

// Select switches to another garment. An invalid selection is rejected and
// the previous one stays active.
func (s *Selector) Select(group Group, position int) error {
	sel := Selection{Group: group, Position: position}
	if err := s.catalog.Validate(sel); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = sel
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the active selection.
func (s *Selector) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

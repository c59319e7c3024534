package model

import (
	"errors"
	"fmt"
	"strings"
)

// Layout describes the venue grid: every stand has every level, every
// level has every row, and every row has Columns seats numbered from 1.
type Layout struct {
	Stands  []string `json:"stands"`
	Levels  []string `json:"levels"`
	Rows    []string `json:"rows"`
	Columns int      `json:"columns"`
}

// DefaultLayout is the stadium used when nothing else is configured:
// 8 stands x 3 levels x 5 rows x 10 columns.
func DefaultLayout() Layout {
	return Layout{
		Stands:  []string{"A", "B", "C", "D", "E", "F", "G", "H"},
		Levels:  []string{"1", "2", "3"},
		Rows:    []string{"A", "B", "C", "D", "E"},
		Columns: 10,
	}
}

// Size is the number of seats in the layout.
func (l Layout) Size() int {
	return len(l.Stands) * len(l.Levels) * len(l.Rows) * l.Columns
}

// Validate rejects layouts that cannot produce unique seat ids.
func (l Layout) Validate() error {
	if len(l.Stands) == 0 || len(l.Levels) == 0 || len(l.Rows) == 0 {
		return errors.New("layout: stands, levels and rows must not be empty")
	}
	if l.Columns <= 0 {
		return fmt.Errorf("layout: columns must be positive, got %d", l.Columns)
	}
	for name, labels := range map[string][]string{"stand": l.Stands, "level": l.Levels, "row": l.Rows} {
		seen := make(map[string]bool, len(labels))
		for _, lbl := range labels {
			if lbl == "" || strings.Contains(lbl, "-") {
				return fmt.Errorf("layout: invalid %s label %q", name, lbl)
			}
			if seen[lbl] {
				return fmt.Errorf("layout: duplicate %s label %q", name, lbl)
			}
			seen[lbl] = true
		}
	}
	blocks := make(map[string]bool, len(l.Stands)*len(l.Levels))
	for _, s := range l.Stands {
		for _, lv := range l.Levels {
			if blocks[s+lv] {
				return fmt.Errorf("layout: stand %q and level %q collide with another block", s, lv)
			}
			blocks[s+lv] = true
		}
	}
	for _, r := range l.Rows {
		if last := r[len(r)-1]; last >= '0' && last <= '9' {
			return fmt.Errorf("layout: row label %q must not end in a digit", r)
		}
	}
	return nil
}

// Each calls fn for every seat id of the layout, stand-major.
func (l Layout) Each(fn func(id string)) {
	for _, stand := range l.Stands {
		for _, level := range l.Levels {
			for _, row := range l.Rows {
				for col := 1; col <= l.Columns; col++ {
					fn(SeatID(stand, level, row, col))
				}
			}
		}
	}
}

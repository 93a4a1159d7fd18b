package plan

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Days is the length of the reading plan.
const Days = 365

var ErrInvalidDay = errors.New("day out of range")

//go:embed readings.csv
var defaultReadings []byte

// DayEntry is one day of the reading plan.
type DayEntry struct {
	DayNumber int    `json:"day_number"`
	Date      string `json:"date"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Month returns the calendar month named by the entry's date label
// ("02-Jan"), or 0 if the label cannot be read.
func (e DayEntry) Month() time.Month {
	_, abbr, ok := strings.Cut(e.Date, "-")
	if !ok {
		return 0
	}
	abbr = strings.TrimSpace(abbr)
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String()[:3], abbr) {
			return m
		}
	}
	return 0
}

// Catalog is the immutable, ordered list of plan days.
type Catalog struct {
	entries []DayEntry
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded reading plan.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := parseCSV(bytes.NewReader(defaultReadings))
		if err != nil {
			panic(fmt.Sprintf("plan: embedded readings: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// New validates entries and returns a catalog ordered by day number.
// Every day 1..Days must appear exactly once.
func New(entries []DayEntry) (*Catalog, error) {
	if len(entries) != Days {
		return nil, fmt.Errorf("plan has %d days, want %d", len(entries), Days)
	}

	sorted := make([]DayEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DayNumber < sorted[j].DayNumber })

	for i, e := range sorted {
		if e.DayNumber != i+1 {
			return nil, fmt.Errorf("day %d: missing or duplicate day number (got %d)", i+1, e.DayNumber)
		}
		if strings.TrimSpace(e.Primary) == "" {
			return nil, fmt.Errorf("day %d: primary reading is empty", e.DayNumber)
		}
	}
	return &Catalog{entries: sorted}, nil
}

// ValidDay reports whether n is a day number of the plan.
func ValidDay(n int) bool {
	return n >= 1 && n <= Days
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Day returns the entry for day n.
func (c *Catalog) Day(n int) (DayEntry, error) {
	if !ValidDay(n) {
		return DayEntry{}, fmt.Errorf("day %d: %w", n, ErrInvalidDay)
	}
	return c.entries[n-1], nil
}

// All returns a copy of every entry in order.
func (c *Catalog) All() []DayEntry {
	out := make([]DayEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Month returns the entries whose date label falls in month m.
func (c *Catalog) Month(m time.Month) []DayEntry {
	var out []DayEntry
	for _, e := range c.entries {
		if e.Month() == m {
			out = append(out, e)
		}
	}
	return out
}

// Filter returns the entries for the given day numbers in plan order.
// Unknown day numbers are ignored.
func (c *Catalog) Filter(days []int) []DayEntry {
	want := make(map[int]struct{}, len(days))
	for _, d := range days {
		want[d] = struct{}{}
	}
	var out []DayEntry
	for _, e := range c.entries {
		if _, ok := want[e.DayNumber]; ok {
			out = append(out, e)
		}
	}
	return out
}

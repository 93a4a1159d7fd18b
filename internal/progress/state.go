package progress

import (
	"sort"

	"github.com/bethesda/readingplan/internal/plan"
)

// State is the engine's view of one user's progress.
type State struct {
	Completed map[int]struct{}
	InFlight  map[int]struct{}
	Loading   bool
}

// NewState returns an empty state.
func NewState() State {
	return State{
		Completed: make(map[int]struct{}),
		InFlight:  make(map[int]struct{}),
	}
}

func (s State) Has(day int) bool {
	_, ok := s.Completed[day]
	return ok
}

func (s State) Pending(day int) bool {
	_, ok := s.InFlight[day]
	return ok
}

// CanMark reports whether a mark request for day would change anything.
func (s State) CanMark(day int) bool {
	return plan.ValidDay(day) && !s.Has(day) && !s.Pending(day)
}

// CanUnmark reports whether an unmark request for day would change anything.
func (s State) CanUnmark(day int) bool {
	return plan.ValidDay(day) && s.Has(day) && !s.Pending(day)
}

// CompletedDays returns the completed day numbers in ascending order.
func (s State) CompletedDays() []int {
	return sortedKeys(s.Completed)
}

// InFlightDays returns the days with an outstanding mutation.
func (s State) InFlightDays() []int {
	return sortedKeys(s.InFlight)
}

func (s State) clone() State {
	out := State{
		Completed: make(map[int]struct{}, len(s.Completed)),
		InFlight:  make(map[int]struct{}, len(s.InFlight)),
		Loading:   s.Loading,
	}
	for d := range s.Completed {
		out.Completed[d] = struct{}{}
	}
	for d := range s.InFlight {
		out.InFlight[d] = struct{}{}
	}
	return out
}

type EventKind string

const (
	EventReset           EventKind = "reset"
	EventLoadStarted     EventKind = "load_started"
	EventLoadSucceeded   EventKind = "load_succeeded"
	EventLoadFailed      EventKind = "load_failed"
	EventMarkRequested   EventKind = "mark_requested"
	EventMarkConfirmed   EventKind = "mark_confirmed"
	EventMarkFailed      EventKind = "mark_failed"
	EventUnmarkRequested EventKind = "unmark_requested"
	EventUnmarkConfirmed EventKind = "unmark_confirmed"
	EventUnmarkFailed    EventKind = "unmark_failed"
)

// Event is a state transition. Day is set for mark/unmark events and Days
// for EventLoadSucceeded.
type Event struct {
	Kind EventKind
	Day  int
	Days []int
}

func Reset() Event {
	return Event{Kind: EventReset}
}

func LoadStarted() Event {
	return Event{Kind: EventLoadStarted}
}

func LoadSucceeded(days []int) Event {
	return Event{Kind: EventLoadSucceeded, Days: days}
}

func LoadFailed() Event {
	return Event{Kind: EventLoadFailed}
}

func MarkRequested(day int) Event {
	return Event{Kind: EventMarkRequested, Day: day}
}

func MarkConfirmed(day int) Event {
	return Event{Kind: EventMarkConfirmed, Day: day}
}

func MarkFailed(day int) Event {
	return Event{Kind: EventMarkFailed, Day: day}
}

func UnmarkRequested(day int) Event {
	return Event{Kind: EventUnmarkRequested, Day: day}
}

func UnmarkConfirmed(day int) Event {
	return Event{Kind: EventUnmarkConfirmed, Day: day}
}

func UnmarkFailed(day int) Event {
	return Event{Kind: EventUnmarkFailed, Day: day}
}

// Apply returns the state that results from applying e to s. It never
// modifies s.
//
// Request events are ignored when their precondition does not hold, so a
// duplicate request for a day that is already in flight leaves the state
// untouched.
func Apply(s State, e Event) State {
	next := s.clone()

	switch e.Kind {
	case EventReset:
		return NewState()

	case EventLoadStarted:
		next.Loading = true

	case EventLoadSucceeded:
		next.Completed = make(map[int]struct{}, len(e.Days))
		for _, d := range e.Days {
			if plan.ValidDay(d) {
				next.Completed[d] = struct{}{}
			}
		}
		// Days with an outstanding mutation keep their optimistic value.
		for d := range s.InFlight {
			if s.Has(d) {
				next.Completed[d] = struct{}{}
			} else {
				delete(next.Completed, d)
			}
		}
		next.Loading = false

	case EventLoadFailed:
		next.Loading = false

	case EventMarkRequested:
		if !s.CanMark(e.Day) {
			return next
		}
		next.InFlight[e.Day] = struct{}{}
		next.Completed[e.Day] = struct{}{}

	case EventMarkConfirmed:
		delete(next.InFlight, e.Day)
		next.Completed[e.Day] = struct{}{}

	case EventMarkFailed:
		delete(next.InFlight, e.Day)
		delete(next.Completed, e.Day)

	case EventUnmarkRequested:
		if !s.CanUnmark(e.Day) {
			return next
		}
		next.InFlight[e.Day] = struct{}{}
		delete(next.Completed, e.Day)

	case EventUnmarkConfirmed:
		delete(next.InFlight, e.Day)
		delete(next.Completed, e.Day)

	case EventUnmarkFailed:
		delete(next.InFlight, e.Day)
		next.Completed[e.Day] = struct{}{}
	}

	return next
}

// Percentage returns completed/Days*100, unrounded.
func Percentage(completed int) float64 {
	return float64(completed) / float64(plan.Days) * 100
}

// MissedDays returns every day strictly before currentDay that is not in
// completed. Days from currentDay onward are not yet due.
func MissedDays(completed map[int]struct{}, currentDay int) []int {
	limit := currentDay
	if limit > plan.Days+1 {
		limit = plan.Days + 1
	}
	missed := []int{}
	for d := 1; d < limit; d++ {
		if _, ok := completed[d]; !ok {
			missed = append(missed, d)
		}
	}
	return missed
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

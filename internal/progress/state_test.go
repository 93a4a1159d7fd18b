package progress

import (
	"math"
	"reflect"
	"testing"
)

func stateWith(completed, inFlight []int) State {
	s := NewState()
	for _, d := range completed {
		s.Completed[d] = struct{}{}
	}
	for _, d := range inFlight {
		s.InFlight[d] = struct{}{}
	}
	return s
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := stateWith([]int{1}, nil)
	_ = Apply(s, MarkRequested(2))

	if s.Has(2) || s.Pending(2) {
		t.Error("Apply modified its input state")
	}
}

func TestApplyMarkLifecycle(t *testing.T) {
	s := NewState()

	s = Apply(s, MarkRequested(3))
	if !s.Has(3) || !s.Pending(3) {
		t.Fatalf("after request: has=%v pending=%v, want both true", s.Has(3), s.Pending(3))
	}

	s = Apply(s, MarkConfirmed(3))
	if !s.Has(3) || s.Pending(3) {
		t.Errorf("after confirm: has=%v pending=%v, want true/false", s.Has(3), s.Pending(3))
	}
}

func TestApplyMarkFailedRollsBack(t *testing.T) {
	before := stateWith([]int{1, 2}, nil)

	s := Apply(before, MarkRequested(7))
	s = Apply(s, MarkFailed(7))

	if !reflect.DeepEqual(s.CompletedDays(), before.CompletedDays()) {
		t.Errorf("completed = %v, want %v", s.CompletedDays(), before.CompletedDays())
	}
	if s.Pending(7) {
		t.Error("day 7 still in flight after failure")
	}
}

func TestApplyUnmarkLifecycle(t *testing.T) {
	s := stateWith([]int{4}, nil)

	s = Apply(s, UnmarkRequested(4))
	if s.Has(4) || !s.Pending(4) {
		t.Fatalf("after request: has=%v pending=%v, want false/true", s.Has(4), s.Pending(4))
	}

	failed := Apply(s, UnmarkFailed(4))
	if !failed.Has(4) || failed.Pending(4) {
		t.Errorf("after failure: has=%v pending=%v, want true/false", failed.Has(4), failed.Pending(4))
	}

	confirmed := Apply(s, UnmarkConfirmed(4))
	if confirmed.Has(4) || confirmed.Pending(4) {
		t.Errorf("after confirm: has=%v pending=%v, want false/false", confirmed.Has(4), confirmed.Pending(4))
	}
}

func TestApplyIgnoresRequestsThatWouldNotChangeAnything(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"mark already completed", stateWith([]int{5}, nil), MarkRequested(5)},
		{"mark already in flight", stateWith([]int{5}, []int{5}), MarkRequested(5)},
		{"unmark not completed", NewState(), UnmarkRequested(5)},
		{"unmark in flight", stateWith(nil, []int{5}), UnmarkRequested(5)},
		{"mark day zero", NewState(), MarkRequested(0)},
		{"mark past plan", NewState(), MarkRequested(366)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.state, tt.event)
			if !reflect.DeepEqual(got.CompletedDays(), tt.state.CompletedDays()) {
				t.Errorf("completed = %v, want %v", got.CompletedDays(), tt.state.CompletedDays())
			}
			if !reflect.DeepEqual(got.InFlightDays(), tt.state.InFlightDays()) {
				t.Errorf("in flight = %v, want %v", got.InFlightDays(), tt.state.InFlightDays())
			}
		})
	}
}

func TestApplyLoad(t *testing.T) {
	s := stateWith([]int{1, 2, 3}, nil)

	s = Apply(s, LoadStarted())
	if !s.Loading {
		t.Error("expected loading after LoadStarted")
	}

	failed := Apply(s, LoadFailed())
	if failed.Loading {
		t.Error("expected loading cleared after LoadFailed")
	}
	if got := failed.CompletedDays(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("completed after failure = %v, want [1 2 3]", got)
	}

	ok := Apply(s, LoadSucceeded([]int{10, 10, 0, 400, 11}))
	if ok.Loading {
		t.Error("expected loading cleared after LoadSucceeded")
	}
	if got := ok.CompletedDays(); !reflect.DeepEqual(got, []int{10, 11}) {
		t.Errorf("completed after load = %v, want [10 11]", got)
	}
}

func TestApplyLoadKeepsInFlightDays(t *testing.T) {
	// day 2 is being marked, day 3 is being unmarked
	s := stateWith([]int{1, 2}, []int{2, 3})

	s = Apply(s, LoadSucceeded([]int{1, 3}))

	if got := s.CompletedDays(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("completed = %v, want [1 2]", got)
	}
}

func TestApplyReset(t *testing.T) {
	s := stateWith([]int{1, 2}, []int{3})
	s.Loading = true

	s = Apply(s, Reset())
	if len(s.Completed) != 0 || len(s.InFlight) != 0 || s.Loading {
		t.Errorf("reset state = %+v, want empty", s)
	}
}

func TestMissedDays(t *testing.T) {
	tests := []struct {
		name       string
		completed  []int
		currentDay int
		want       []int
	}{
		{"boundary", []int{3, 5}, 10, []int{1, 2, 4, 6, 7, 8, 9}},
		{"nothing due on day one", nil, 1, []int{}},
		{"before plan start", nil, 0, []int{}},
		{"all done", []int{1, 2, 3}, 4, []int{}},
		{"completions ahead of today do not extend range", []int{20}, 3, []int{1, 2}},
		{"plan finished", nil, 366, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissedDays(stateWith(tt.completed, nil).Completed, tt.currentDay)
			if tt.want == nil {
				if len(got) != 365 {
					t.Errorf("len = %d, want 365", len(got))
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MissedDays = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissedDaysWithNoCompletionsCountsUpToToday(t *testing.T) {
	got := MissedDays(NewState().Completed, 50)
	if len(got) != 49 {
		t.Errorf("len = %d, want 49", len(got))
	}
}

func TestPercentage(t *testing.T) {
	got := Percentage(182)
	want := 182.0 / 365.0 * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Percentage(182) = %v, want %v", got, want)
	}
	if math.Abs(got-49.863) > 0.001 {
		t.Errorf("Percentage(182) = %v, want ~49.863", got)
	}
	if Percentage(0) != 0 {
		t.Errorf("Percentage(0) = %v, want 0", Percentage(0))
	}
	if Percentage(365) != 100 {
		t.Errorf("Percentage(365) = %v, want 100", Percentage(365))
	}
}

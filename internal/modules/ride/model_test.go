package ride

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusDriverAssigned, true},
		{StatusPending, StatusUnmatched, true},
		{StatusPending, StatusCompleted, false},
		{StatusDriverAssigned, StatusConfirmed, true},
		{StatusDriverAssigned, StatusPending, true}, // driver backed out
		{StatusConfirmed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusUnmatched, StatusPending, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRecurringTemplate_MatchesDate(t *testing.T) {
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // a Monday

	daily := &RecurringTemplate{Recurrence: RecurDaily}
	if !daily.MatchesDate(monday) || !daily.MatchesDate(monday.AddDate(0, 0, 3)) {
		t.Error("daily template should match every date")
	}

	weekly := &RecurringTemplate{Recurrence: RecurWeekly, CustomDays: []int{0, 2}} // Mon, Wed
	if !weekly.MatchesDate(monday) {
		t.Error("weekly template should match Monday")
	}
	if weekly.MatchesDate(monday.AddDate(0, 0, 1)) {
		t.Error("weekly template should not match Tuesday")
	}
	if !weekly.MatchesDate(monday.AddDate(0, 0, 2)) {
		t.Error("weekly template should match Wednesday")
	}

	biweekly := &RecurringTemplate{
		Recurrence: RecurBiweekly,
		CustomDays: []int{0},
		StartDate:  monday,
	}
	if !biweekly.MatchesDate(monday) {
		t.Error("biweekly should match its start week")
	}
	if biweekly.MatchesDate(monday.AddDate(0, 0, 7)) {
		t.Error("biweekly should skip the off week")
	}
	if !biweekly.MatchesDate(monday.AddDate(0, 0, 14)) {
		t.Error("biweekly should match two weeks out")
	}

	monthly := &RecurringTemplate{Recurrence: RecurMonthly, CustomDays: []int{15}}
	if !monthly.MatchesDate(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("monthly should match the 15th")
	}
	if monthly.MatchesDate(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Error("monthly should not match the 16th")
	}
}

func TestRecurringTemplate_Excluded(t *testing.T) {
	tpl := &RecurringTemplate{
		Recurrence:     RecurDaily,
		ExclusionDates: []time.Time{time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
	}
	if !tpl.Excluded(time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)) {
		t.Error("expected exclusion to apply regardless of time of day")
	}
	if tpl.Excluded(time.Date(2025, 6, 11, 9, 30, 0, 0, time.UTC)) {
		t.Error("unexpected exclusion")
	}
}

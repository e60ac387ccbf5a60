package calendar

import "testing"

func TestEfficiencyScore(t *testing.T) {
	tests := []struct {
		name       string
		waitingMin int
		distanceKm float64
		bufferMin  int
		want       int
	}{
		{"seamless handover", 10, 2, 5, 100},
		{"comfortable buffer bonus capped", 10, 2, 15, 100},
		{"short wait", 20, 2, 5, 90},
		{"medium wait", 45, 2, 5, 80},
		{"long wait", 90, 2, 5, 60},
		{"medium reposition", 20, 12, 5, 75},
		{"long reposition", 20, 25, 5, 60},
		{"worst case", 90, 25, 5, 30},
		{"long wait with buffer", 90, 2, 15, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EfficiencyScore(tt.waitingMin, tt.distanceKm, tt.bufferMin); got != tt.want {
				t.Errorf("EfficiencyScore(%d, %.0f, %d) = %d, want %d",
					tt.waitingMin, tt.distanceKm, tt.bufferMin, got, tt.want)
			}
		})
	}
}

func TestGapSuggestions(t *testing.T) {
	if got := GapSuggestions(10, 2, 15); len(got) != 0 {
		t.Errorf("clean gap should yield no suggestions, got %v", got)
	}
	if got := GapSuggestions(45, 20, 5); len(got) != 3 {
		t.Errorf("bad gap should yield three suggestions, got %v", got)
	}
}

func TestNewOptimization(t *testing.T) {
	o := NewOptimization("d1", "r1", "r2", 45, 2, 5, testTime())
	if !o.NeedsReoptimization {
		t.Error("45-minute wait should flag reoptimization")
	}
	if o.EfficiencyScore != 80 {
		t.Errorf("score = %d, want 80", o.EfficiencyScore)
	}

	o = NewOptimization("d1", "r1", "r2", 10, 2, 15, testTime())
	if o.NeedsReoptimization {
		t.Error("clean gap should not flag reoptimization")
	}
}

package matching

import (
	"testing"

	"rideconnect/internal/config"
	"rideconnect/internal/modules/calendar"
	"rideconnect/internal/modules/driver"
)

func TestDistanceScore(t *testing.T) {
	tests := []struct {
		km   float64
		want float64
	}{
		{0.5, 100}, {1, 100}, {2, 90}, {3, 90}, {4, 75}, {5, 75},
		{7, 50}, {10, 50}, {12, 25}, {15, 25}, {20, 0},
	}
	for _, tt := range tests {
		if got := DistanceScore(tt.km); got != tt.want {
			t.Errorf("DistanceScore(%.1f) = %v, want %v", tt.km, got, tt.want)
		}
	}
}

func TestExperienceScore(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		wheelchair int
		required   bool
		want       float64
	}{
		{"new driver", 10, 0, false, 50},
		{"some experience", 100, 0, false, 60},
		{"seasoned", 300, 0, false, 65},
		{"veteran", 600, 0, false, 70},
		{"wheelchair not required ignores wheelchair rides", 600, 200, false, 70},
		{"wheelchair specialist", 600, 200, true, 100},
		{"moderate wheelchair experience", 300, 60, true, 85},
		{"light wheelchair experience", 100, 30, true, 70},
		{"cap at 100", 600, 150, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &driver.Driver{TotalRides: tt.total, WheelchairRides: tt.wheelchair}
			if got := ExperienceScore(d, tt.required); got != tt.want {
				t.Errorf("ExperienceScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvailabilityScore(t *testing.T) {
	entry := func(start, end int, util float64) *calendar.Entry {
		return &calendar.Entry{StartMin: start, EndMin: end, Status: calendar.StatusAvailable, UtilizationPct: util}
	}

	if got := AvailabilityScore(nil, 600, 660); got != 0 {
		t.Errorf("no entry = %v, want 0", got)
	}

	offline := entry(420, 1320, 0)
	offline.Status = calendar.StatusOffline
	if got := AvailabilityScore(offline, 600, 660); got != 0 {
		t.Errorf("offline entry = %v, want 0", got)
	}

	if got := AvailabilityScore(entry(420, 1320, 0), 600, 660); got != 100 {
		t.Errorf("full fit = %v, want 100", got)
	}
	if got := AvailabilityScore(entry(630, 1320, 0), 600, 660); got != 50 {
		t.Errorf("partial overlap = %v, want 50", got)
	}
	if got := AvailabilityScore(entry(420, 1320, 0), 300, 360); got != 0 {
		t.Errorf("no overlap = %v, want 0", got)
	}

	if got := AvailabilityScore(entry(420, 1320, 60), 600, 660); got != 90 {
		t.Errorf("busy day = %v, want 90", got)
	}
	// The heavier discount starts at 70% utilization.
	if got := AvailabilityScore(entry(420, 1320, 75), 600, 660); got != 70 {
		t.Errorf("75%% utilization = %v, want 70", got)
	}
	if got := AvailabilityScore(entry(420, 1320, 85), 600, 660); got != 70 {
		t.Errorf("packed day = %v, want 70", got)
	}
}

func TestEfficiencyScore(t *testing.T) {
	if got := EfficiencyScore(nil); got != 50 {
		t.Errorf("no nearby rides = %v, want neutral 50", got)
	}
	if got := EfficiencyScore([]NearbyRide{{DistanceKm: 3, GapMin: 60}}); got != 75 {
		t.Errorf("tight chain = %v, want 75", got)
	}
	if got := EfficiencyScore([]NearbyRide{{DistanceKm: 8, GapMin: 100}}); got != 65 {
		t.Errorf("decent chain = %v, want 65", got)
	}
	if got := EfficiencyScore([]NearbyRide{{DistanceKm: 25, GapMin: 10}}); got != 40 {
		t.Errorf("awkward chain = %v, want 40", got)
	}
	// Two great chains cap at 100.
	if got := EfficiencyScore([]NearbyRide{{DistanceKm: 2, GapMin: 45}, {DistanceKm: 3, GapMin: 60}, {DistanceKm: 1, GapMin: 40}}); got != 100 {
		t.Errorf("chains = %v, want capped 100", got)
	}
	// Six awkward ones floor at 0.
	bad := make([]NearbyRide, 6)
	for i := range bad {
		bad[i] = NearbyRide{DistanceKm: 30, GapMin: 5}
	}
	if got := EfficiencyScore(bad); got != 0 {
		t.Errorf("bad chains = %v, want floored 0", got)
	}
}

func TestRatingScore(t *testing.T) {
	tests := []struct {
		rating float64
		want   float64
	}{
		{5.0, 100}, {4.8, 100}, {4.6, 85}, {4.2, 70}, {3.7, 50}, {3.0, 30}, {0, 30},
	}
	for _, tt := range tests {
		if got := RatingScore(tt.rating); got != tt.want {
			t.Errorf("RatingScore(%.1f) = %v, want %v", tt.rating, got, tt.want)
		}
	}
}

func TestTotalScore(t *testing.T) {
	cfg := config.DefaultScoring()
	b := ScoreBreakdown{Distance: 100, Experience: 100, Availability: 100, Efficiency: 100, Rating: 100}
	if got := TotalScore(b, cfg); got != 100 {
		t.Errorf("perfect breakdown = %v, want 100", got)
	}

	// 90*0.30 + 70*0.25 + 100*0.20 + 50*0.15 + 85*0.10 = 80.5
	b = ScoreBreakdown{Distance: 90, Experience: 70, Availability: 100, Efficiency: 50, Rating: 85}
	if got := TotalScore(b, cfg); got != 80.5 {
		t.Errorf("mixed breakdown = %v, want 80.5", got)
	}
}

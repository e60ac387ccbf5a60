package driver

import "testing"

func approvedDriver() Driver {
	return Driver{
		ID:                "d1",
		Active:            true,
		ApplicationStatus: "approved",
		TrainingCompleted: true,
		AssessmentPassed:  true,
	}
}

func TestEligible(t *testing.T) {
	if !approvedDriver().Eligible() {
		t.Fatal("fully approved driver must be eligible")
	}

	cases := []struct {
		name   string
		mutate func(*Driver)
	}{
		{"inactive", func(d *Driver) { d.Active = false }},
		{"application pending", func(d *Driver) { d.ApplicationStatus = "pending" }},
		{"training incomplete", func(d *Driver) { d.TrainingCompleted = false }},
		{"assessment failed", func(d *Driver) { d.AssessmentPassed = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := approvedDriver()
			tc.mutate(&d)
			if d.Eligible() {
				t.Errorf("driver with %s must not be eligible", tc.name)
			}
		})
	}
}

func TestTrainedFor(t *testing.T) {
	d := approvedDriver()
	d.AccessibilityTraining = []string{"wheelchair", "blind"}

	if !d.TrainedFor(nil) {
		t.Error("no requirements must always pass")
	}
	if !d.TrainedFor([]string{"wheelchair"}) {
		t.Error("covered requirement rejected")
	}
	if !d.TrainedFor([]string{"wheelchair", "blind"}) {
		t.Error("fully covered requirements rejected")
	}
	if d.TrainedFor([]string{"wheelchair", "deaf"}) {
		t.Error("uncovered requirement accepted")
	}
}

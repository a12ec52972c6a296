package drive

import (
	"testing"
	"time"
)

func someTime(step int) time.Time {
	return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(step) * time.Hour)
}

// =============================================================================
// VALENCE DERIVATION TESTS
// =============================================================================

func TestRecomputeValence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		drive Drive
		want  Valence
	}{
		{
			name:  "fresh drive is neutral",
			drive: Drive{Name: "X", Threshold: 10, Pressure: 2},
			want:  ValenceNeutral,
		},
		{
			name: "thwarted and triggered is aversive",
			drive: Drive{Name: "X", Threshold: 10, Pressure: 12,
				ThwartingCount: 2, LastTriggered: someTime(0)},
			want: ValenceAversive,
		},
		{
			name: "thwarted but below triggered stays appetitive",
			drive: Drive{Name: "X", Threshold: 10, Pressure: 8,
				ThwartingCount: 4, LastTriggered: someTime(0)},
			want: ValenceAppetitive,
		},
		{
			name: "low thwarting with history is appetitive",
			drive: Drive{Name: "X", Threshold: 10, Pressure: 12,
				ThwartingCount: 1, LastTriggered: someTime(0)},
			want: ValenceAppetitive,
		},
		{
			name: "satisfaction history alone is appetitive",
			drive: Drive{Name: "X", Threshold: 10, Pressure: 1,
				SatisfactionEvents: []SatisfactionEvent{{Timestamp: someTime(0)}}},
			want: ValenceAppetitive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.drive
			if got := RecomputeValence(&d); got != tt.want {
				t.Errorf("RecomputeValence = %s, want %s", got, tt.want)
			}
		})
	}
}

// =============================================================================
// THWARTING DETECTION TESTS
// =============================================================================

func TestObserveThwarting_FirstCrossingStartsCycle(t *testing.T) {
	t.Parallel()

	d := &Drive{Name: "X", Threshold: 10, Pressure: 11}
	now := someTime(0)

	if ObserveThwarting(d, now, time.Hour) {
		t.Error("first crossing must not increment thwarting")
	}
	if !d.LastTriggered.Equal(now) {
		t.Errorf("LastTriggered not started: %v", d.LastTriggered)
	}
	if d.ThwartingCount != 0 {
		t.Errorf("ThwartingCount = %d, want 0", d.ThwartingCount)
	}
}

func TestObserveThwarting_IncrementsAfterRearmPeriod(t *testing.T) {
	t.Parallel()

	d := &Drive{Name: "X", Threshold: 10, Pressure: 11, LastTriggered: someTime(0)}

	// Inside the rearm period: nothing.
	if ObserveThwarting(d, someTime(0).Add(30*time.Minute), time.Hour) {
		t.Error("increment before rearm elapsed")
	}

	// Full cycle elapsed, no satisfaction since: increment and reset clock.
	later := someTime(2)
	if !ObserveThwarting(d, later, time.Hour) {
		t.Fatal("expected increment after rearm elapsed")
	}
	if d.ThwartingCount != 1 {
		t.Errorf("ThwartingCount = %d, want 1", d.ThwartingCount)
	}
	if !d.LastTriggered.Equal(later) {
		t.Errorf("LastTriggered not reset: %v", d.LastTriggered)
	}
}

func TestObserveThwarting_SatisfactionResolvesCycle(t *testing.T) {
	t.Parallel()

	d := &Drive{
		Name: "X", Threshold: 10, Pressure: 11,
		LastTriggered: someTime(0),
		SatisfactionEvents: []SatisfactionEvent{
			{Timestamp: someTime(1)}, // after the trigger
		},
	}

	if ObserveThwarting(d, someTime(3), time.Hour) {
		t.Error("satisfaction since last trigger must suppress the increment")
	}
	if d.ThwartingCount != 0 {
		t.Errorf("ThwartingCount = %d, want 0", d.ThwartingCount)
	}
}

func TestObserveThwarting_BelowTriggeredIsInert(t *testing.T) {
	t.Parallel()

	d := &Drive{Name: "X", Threshold: 10, Pressure: 7, LastTriggered: someTime(0)}
	if ObserveThwarting(d, someTime(5), time.Hour) {
		t.Error("drive below triggered must never accrue thwarting")
	}
}

// =============================================================================
// THRESHOLD ADVISORY TESTS
// =============================================================================

func TestAdviseThreshold(t *testing.T) {
	t.Parallel()

	d := &Drive{Name: "X", ThwartingCount: 2}
	if adv := AdviseThreshold(d); adv != nil {
		t.Errorf("no advisory below the floor, got %+v", adv)
	}

	d.ThwartingCount = 3
	adv := AdviseThreshold(d)
	if adv == nil {
		t.Fatal("expected advisory at thwarting_count 3")
	}
	if adv.SuggestedMin != 24*time.Hour || adv.SuggestedMax != 48*time.Hour {
		t.Errorf("advisory window = [%v, %v], want [24h, 48h]", adv.SuggestedMin, adv.SuggestedMax)
	}
}

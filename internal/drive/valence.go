package drive

import "time"

// =============================================================================
// VALENCE TRACKER
// =============================================================================
// Valence is derived state, recomputed on every tick and every
// satisfaction event. Only the thwarting count is independent truth.

// RecomputeValence derives the drive's valence from its thwarting count
// and current band and stores the result on the record.
//
//   - aversive: thwarting ≥ AversiveThwartingFloor AND band is
//     triggered-or-above
//   - neutral: no satisfaction history, never triggered, no thwarting
//   - appetitive: otherwise
func RecomputeValence(d *Drive) Valence {
	band := d.Band()
	switch {
	case d.ThwartingCount >= AversiveThwartingFloor && band.AtLeast(BandTriggered):
		d.Valence = ValenceAversive
	case d.ThwartingCount == 0 && len(d.SatisfactionEvents) == 0 && d.LastTriggered.IsZero():
		d.Valence = ValenceNeutral
	default:
		d.Valence = ValenceAppetitive
	}
	return d.Valence
}

// ObserveThwarting advances the thwarting state machine for one tick
// at time now. rearm is the nominal trigger cycle: a drive that sits in
// triggered-or-above for a full rearm period with no intervening
// satisfaction gets its thwarting count incremented and its trigger
// clock reset.
//
// Returns true when the count was incremented.
func ObserveThwarting(d *Drive, now time.Time, rearm time.Duration) bool {
	if !d.Band().AtLeast(BandTriggered) {
		return false
	}

	// First crossing into triggered: start the cycle, no thwarting yet.
	if d.LastTriggered.IsZero() {
		d.LastTriggered = now
		return false
	}

	// A satisfaction since the last trigger resolves the cycle.
	if last := d.LastSatisfiedAt(); !last.IsZero() && last.After(d.LastTriggered) {
		d.LastTriggered = now
		return false
	}

	if now.Sub(d.LastTriggered) < rearm {
		return false
	}

	d.ThwartingCount++
	d.LastTriggered = now
	return true
}

// ThresholdAdvisory describes a recommended temporary threshold bump for
// a chronically thwarted drive. It is advisory metadata only; nothing in
// the engine ever mutates a threshold from it.
type ThresholdAdvisory struct {
	Drive          string        `json:"drive"`
	ThwartingCount int           `json:"thwarting_count"`
	SuggestedMin   time.Duration `json:"suggested_min"`
	SuggestedMax   time.Duration `json:"suggested_max"`
	Reason         string        `json:"reason"`
}

// AdviseThreshold returns a threshold adjustment advisory when the
// drive's thwarting count warrants one, or nil.
func AdviseThreshold(d *Drive) *ThresholdAdvisory {
	if d.ThwartingCount < AdvisoryThwartingFloor {
		return nil
	}
	return &ThresholdAdvisory{
		Drive:          d.Name,
		ThwartingCount: d.ThwartingCount,
		SuggestedMin:   24 * time.Hour,
		SuggestedMax:   48 * time.Hour,
		Reason:         "repeated triggering without resolution; raise threshold temporarily to reduce frequency",
	}
}

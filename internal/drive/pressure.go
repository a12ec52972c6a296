package drive

import "math"

// =============================================================================
// PRESSURE MODEL
// =============================================================================

// Accumulate returns the drive's pressure after hoursElapsed of wall-clock
// time. Accumulation never decreases pressure and is clamped at
// threshold × EmergencyCap. Activity-driven drives ignore elapsed time;
// feed them through AccumulateEvents instead.
func Accumulate(d *Drive, hoursElapsed float64) float64 {
	if d.ActivityDriven || hoursElapsed <= 0 {
		return clampPressure(d.Pressure, d.Threshold)
	}
	return clampPressure(d.Pressure+d.RatePerHour*hoursElapsed, d.Threshold)
}

// AccumulateEvents returns the pressure after a count of discrete
// activity events, for activity-driven drives. RatePerHour doubles as
// the per-event increment. Time-driven drives are left untouched.
func AccumulateEvents(d *Drive, events int) float64 {
	if !d.ActivityDriven || events <= 0 {
		return clampPressure(d.Pressure, d.Threshold)
	}
	return clampPressure(d.Pressure+d.RatePerHour*float64(events), d.Threshold)
}

// ClampPressure bounds a raw pressure value to [0, threshold × EmergencyCap].
func ClampPressure(p, threshold float64) float64 {
	return clampPressure(p, threshold)
}

func clampPressure(p, threshold float64) float64 {
	ceiling := threshold * EmergencyCap
	if p > ceiling {
		return ceiling
	}
	return math.Max(p, 0)
}

// =============================================================================
// THRESHOLD CLASSIFIER
// =============================================================================

// Band cut ratios, applied to pressure/threshold. Lower edges are
// inclusive, so an exact boundary resolves to the higher band.
const (
	cutAvailable = 0.30
	cutElevated  = 0.75
	cutTriggered = 1.00
	cutCrisis    = 1.50
	cutEmergency = 2.00
)

// Classify maps a pressure/threshold pair to its graduated band.
// The bands are recomputed on demand and never stored, so a threshold
// change can never leave a stale band behind.
func Classify(pressure, threshold float64) Band {
	if threshold <= 0 {
		return BandNeutral
	}
	ratio := pressure / threshold
	switch {
	case ratio >= cutEmergency:
		return BandEmergency
	case ratio >= cutCrisis:
		return BandCrisis
	case ratio >= cutTriggered:
		return BandTriggered
	case ratio >= cutElevated:
		return BandElevated
	case ratio >= cutAvailable:
		return BandAvailable
	default:
		return BandNeutral
	}
}

// AtLeast reports whether band b is at or above the severity of min.
func (b Band) AtLeast(min Band) bool {
	return bandRank(b) >= bandRank(min)
}

func bandRank(b Band) int {
	switch b {
	case BandNeutral:
		return 0
	case BandAvailable:
		return 1
	case BandElevated:
		return 2
	case BandTriggered:
		return 3
	case BandCrisis:
		return 4
	case BandEmergency:
		return 5
	default:
		return -1
	}
}

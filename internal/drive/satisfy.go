package drive

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SATISFACTION ENGINE
// =============================================================================

// Depth → reduction ratio for appetitive (and neutral) drives.
var appetitiveRatios = map[Depth]float64{
	DepthShallow:  0.25,
	DepthModerate: 0.50,
	DepthDeep:     0.75,
}

// Depth → reduction ratio for aversive drives. Investigate is purely
// diagnostic: the engagement is "why is this blocked", not "do the
// thing", so pressure is untouched.
var aversiveRatios = map[Depth]float64{
	DepthInvestigate: 0.0,
	DepthAlternative: 0.35,
	DepthDeep:        0.75,
}

// autoRatioForBand selects the implied depth ratio for DepthAuto on an
// appetitive drive from its current band.
func autoRatioForBand(b Band) float64 {
	switch b {
	case BandElevated:
		return 0.50
	case BandTriggered:
		return 0.75
	case BandCrisis, BandEmergency:
		return 0.90
	default:
		// neutral and available both take the lightest touch
		return 0.25
	}
}

// Result reports the outcome of one satisfaction event.
type Result struct {
	Drive          string             `json:"drive"`
	Depth          Depth              `json:"depth"`
	Ratio          float64            `json:"ratio"`
	PressureBefore float64            `json:"pressure_before"`
	PressureAfter  float64            `json:"pressure_after"`
	BandBefore     Band               `json:"band_before"`
	BandAfter      Band               `json:"band_after"`
	ResetThwarting bool               `json:"reset_thwarting"`
	Valence        Valence            `json:"valence"`
	Advisory       *ThresholdAdvisory `json:"advisory,omitempty"`
}

// ResolveRatio maps a requested depth to a reduction ratio for the
// drive's current valence. Depths that belong to the other valence are
// rejected with ErrInvalidDepth rather than silently reinterpreted; the
// caller treats that as a no-op.
func ResolveRatio(d *Drive, depth Depth) (ratio float64, resets bool, err error) {
	if d.Valence == ValenceAversive {
		if depth == DepthAuto {
			// An aversive drive's default engagement is diagnosis.
			return 0.0, false, nil
		}
		r, ok := aversiveRatios[depth]
		if !ok {
			return 0, false, fmt.Errorf("%w: %q on aversive drive %s", ErrInvalidDepth, depth, d.Name)
		}
		// Deep work is the only path back to appetitive valence.
		return r, depth == DepthDeep, nil
	}

	if depth == DepthAuto {
		return autoRatioForBand(d.Band()), false, nil
	}
	r, ok := appetitiveRatios[depth]
	if !ok {
		return 0, false, fmt.Errorf("%w: %q on %s drive %s", ErrInvalidDepth, depth, d.Valence, d.Name)
	}
	return r, false, nil
}

// Satisfy applies one satisfaction event to the drive in place: the
// reduction is multiplicative (pressure × (1−ratio), never additive), a
// SatisfactionEvent is recorded, and valence is recomputed. The caller
// owns persistence.
func Satisfy(d *Drive, depth Depth, source Source, now time.Time) (Result, error) {
	ratio, resets, err := ResolveRatio(d, depth)
	if err != nil {
		return Result{}, err
	}

	before := d.Pressure
	bandBefore := d.Band()

	d.Pressure = clampPressure(before*(1-ratio), d.Threshold)
	if resets {
		d.ThwartingCount = 0
	}

	ev := SatisfactionEvent{
		ID:             uuid.New().String(),
		Timestamp:      now,
		Depth:          depth,
		PressureBefore: before,
		PressureAfter:  d.Pressure,
		Ratio:          ratio,
		Source:         source,
	}
	d.SatisfactionEvents = append([]SatisfactionEvent{ev}, d.SatisfactionEvents...)
	if len(d.SatisfactionEvents) > MaxSatisfactionEvents {
		d.SatisfactionEvents = d.SatisfactionEvents[:MaxSatisfactionEvents]
	}
	d.SatisfactionCount++

	RecomputeValence(d)

	return Result{
		Drive:          d.Name,
		Depth:          depth,
		Ratio:          ratio,
		PressureBefore: before,
		PressureAfter:  d.Pressure,
		BandBefore:     bandBefore,
		BandAfter:      d.Band(),
		ResetThwarting: resets,
		Valence:        d.Valence,
		Advisory:       AdviseThreshold(d),
	}, nil
}

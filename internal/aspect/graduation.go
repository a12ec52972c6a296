package aspect

import (
	"time"

	"vagus/internal/drive"
)

// Graduation criteria: ALL must hold before a latent aspect is flagged
// as a graduation candidate. Flagging surfaces the aspect for a
// decision; nothing is auto-promoted.
const (
	// GraduationContributionFloor is the minimum trailing-week share of
	// the parent's pressure accumulation.
	GraduationContributionFloor = 0.5

	// GraduationSatisfactions is the minimum cumulative satisfaction
	// count while latent.
	GraduationSatisfactions = 10

	// GraduationMinAge is the minimum time spent as an aspect.
	GraduationMinAge = 14 * 24 * time.Hour
)

// contributionHorizon is the EWMA horizon for the trailing-week
// contribution share.
const contributionHorizon = 7 * 24 * time.Hour

// GraduationCandidate pairs an aspect with the criteria it met.
type GraduationCandidate struct {
	Name          string  `json:"name"`
	Parent        string  `json:"parent"`
	Contribution  float64 `json:"pressure_contribution_7d"`
	Satisfactions int     `json:"satisfaction_count"`
	DaysAsAspect  float64 `json:"days_as_aspect"`
}

// ReadyToGraduate applies the three criteria to one latent aspect.
func ReadyToGraduate(d *drive.Drive, now time.Time) bool {
	if d.Status != drive.StatusLatent || d.ConsolidatedAt.IsZero() {
		return false
	}
	return d.PressureContribution7 > GraduationContributionFloor &&
		d.SatisfactionCount >= GraduationSatisfactions &&
		now.Sub(d.ConsolidatedAt) >= GraduationMinAge
}

// GraduationCandidates reviews every latent aspect in the registry and
// returns the ones meeting all three criteria.
func GraduationCandidates(reg *drive.Registry, now time.Time) []GraduationCandidate {
	var out []GraduationCandidate
	for _, d := range reg.Drives {
		if !ReadyToGraduate(d, now) {
			continue
		}
		out = append(out, GraduationCandidate{
			Name:          d.Name,
			Parent:        d.AspectOf,
			Contribution:  d.PressureContribution7,
			Satisfactions: d.SatisfactionCount,
			DaysAsAspect:  now.Sub(d.ConsolidatedAt).Hours() / 24,
		})
	}
	return out
}

// FoldLatent advances latent aspects for one tick: each aspect
// accumulates its own silent pressure delta, the delta is folded into
// the parent's pressure, and the aspect's trailing-week contribution
// share is updated as an EWMA over the 7-day horizon.
//
// Latent drives never enter the triggered set themselves; their only
// runtime effect is through the parent.
func FoldLatent(reg *drive.Registry, hoursElapsed float64) {
	if hoursElapsed <= 0 {
		return
	}
	for _, d := range reg.Drives {
		if d.Status != drive.StatusLatent || d.AspectOf == "" {
			continue
		}
		parent, ok := reg.Drives[d.AspectOf]
		if !ok || d.ActivityDriven {
			continue
		}

		before := d.Pressure
		d.Pressure = drive.Accumulate(d, hoursElapsed)
		delta := d.Pressure - before

		parentDelta := parent.RatePerHour * hoursElapsed
		share := 0.0
		if delta+parentDelta > 0 {
			share = delta / (delta + parentDelta)
		}
		alpha := hoursElapsed / contributionHorizon.Hours()
		if alpha > 1 {
			alpha = 1
		}
		d.PressureContribution7 += alpha * (share - d.PressureContribution7)

		if delta > 0 {
			parent.Pressure = drive.ClampPressure(parent.Pressure+delta, parent.Threshold)
		}
	}
}

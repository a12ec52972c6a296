// Package drive implements the interoceptive drive model: named
// motivational pressures that accumulate over time, classify into
// graduated threshold bands, and decay multiplicatively when satisfied.
//
// Everything in this package is pure computation over the Drive and
// Registry records. Persistence lives in internal/registry, orchestration
// in internal/tick.
package drive

import (
	"errors"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDriveNotFound is returned when an operation names an unknown drive.
	ErrDriveNotFound = errors.New("drive not found")

	// ErrInvalidDepth is returned when a satisfaction depth is not valid
	// for the drive's current valence (e.g. "shallow" on an aversive drive).
	ErrInvalidDepth = errors.New("invalid depth for valence")
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Band is the graduated threshold band derived from pressure/threshold.
type Band string

const (
	BandNeutral   Band = "neutral"   // [0, 0.30)
	BandAvailable Band = "available" // [0.30, 0.75)
	BandElevated  Band = "elevated"  // [0.75, 1.00)
	BandTriggered Band = "triggered" // [1.00, 1.50)
	BandCrisis    Band = "crisis"    // [1.50, 2.00)
	BandEmergency Band = "emergency" // [2.00, ∞), pressure clamped to cap
)

// Valence describes how a drive wants to be engaged.
type Valence string

const (
	ValenceAppetitive Valence = "appetitive" // wants the activity itself
	ValenceAversive   Valence = "aversive"   // wants investigation of the blockage
	ValenceNeutral    Valence = "neutral"    // no recent history either way
)

// Depth is the requested intensity of a satisfaction event.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
	DepthAuto     Depth = "auto"

	// Aversive-only depths.
	DepthInvestigate Depth = "investigate"
	DepthAlternative Depth = "alternative"
)

// Status is the lifecycle state of a drive. Drives are never deleted;
// a consolidated drive becomes latent under a parent.
type Status string

const (
	StatusActive Status = "active"
	StatusLatent Status = "latent"
)

// Category records a drive's provenance. It never alters behavior.
type Category string

const (
	CategoryCore          Category = "core"
	CategoryDiscovered    Category = "discovered"
	CategoryPostEmergence Category = "post_emergence"
)

// Source identifies what produced a satisfaction event.
type Source string

const (
	SourceManual  Source = "manual"
	SourceSession Source = "session"
	SourceAuto    Source = "auto"
)

// =============================================================================
// TUNING CONSTANTS
// =============================================================================

const (
	// EmergencyCap bounds pressure at threshold × EmergencyCap.
	EmergencyCap = 2.0

	// MaxSatisfactionEvents caps the per-drive event history.
	MaxSatisfactionEvents = 10

	// MaxAspects caps the number of latent children under one parent.
	MaxAspects = 5

	// AversiveThwartingFloor is the thwarting count at which a triggered
	// drive flips to aversive valence.
	AversiveThwartingFloor = 2

	// AdvisoryThwartingFloor is the thwarting count at which a threshold
	// adjustment advisory is surfaced.
	AdvisoryThwartingFloor = 3
)

// =============================================================================
// RECORDS
// =============================================================================

// SatisfactionEvent is an immutable record of one pressure reduction.
type SatisfactionEvent struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Depth          Depth     `json:"depth"`
	PressureBefore float64   `json:"pressure_before"`
	PressureAfter  float64   `json:"pressure_after"`
	Ratio          float64   `json:"ratio"`
	Source         Source    `json:"source"`
}

// Drive is the core entity: one named motivational pressure source.
type Drive struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Pressure    float64 `json:"pressure"`
	Threshold   float64 `json:"threshold"`
	RatePerHour float64 `json:"rate_per_hour"`

	// ActivityDriven drives accumulate from discrete journal events
	// rather than elapsed time. With no event feed wired the pressure
	// stays flat.
	ActivityDriven bool `json:"activity_driven"`

	Valence        Valence `json:"valence"`
	ThwartingCount int     `json:"thwarting_count"`

	// SatisfactionEvents is most-recent-first, capped at
	// MaxSatisfactionEvents; the oldest entry is evicted on overflow.
	SatisfactionEvents []SatisfactionEvent `json:"satisfaction_events"`

	Status   Status   `json:"status"`
	AspectOf string   `json:"aspect_of,omitempty"`
	Aspects  []string `json:"aspects,omitempty"`
	Category Category `json:"category"`

	LastTriggered time.Time `json:"last_triggered,omitzero"`

	// LastSpawned stamps the most recent autonomous engagement spawn,
	// so one trigger episode produces one spool request.
	LastSpawned time.Time `json:"last_spawned,omitzero"`

	// Aspect bookkeeping, only meaningful while Status == latent.
	ConsolidatedAt        time.Time `json:"consolidated_at,omitzero"`
	SatisfactionCount     int       `json:"satisfaction_count"`
	PressureContribution7 float64   `json:"pressure_contribution_7d"`
}

// Ratio returns pressure/threshold. Threshold is always positive for a
// well-formed drive; zero returns 0 to keep callers total.
func (d *Drive) Ratio() float64 {
	if d.Threshold <= 0 {
		return 0
	}
	return d.Pressure / d.Threshold
}

// Band returns the drive's current graduated band.
func (d *Drive) Band() Band {
	return Classify(d.Pressure, d.Threshold)
}

// Triggerable reports whether the drive can independently trigger.
// Latent drives never trigger on their own.
func (d *Drive) Triggerable() bool {
	return d.Status == StatusActive
}

// LastSatisfiedAt returns the timestamp of the most recent satisfaction
// event, or the zero time if there is none.
func (d *Drive) LastSatisfiedAt() time.Time {
	if len(d.SatisfactionEvents) == 0 {
		return time.Time{}
	}
	return d.SatisfactionEvents[0].Timestamp
}

// Registry is the root persisted object: the full drive set plus the
// derived triggered cache and tick bookkeeping.
type Registry struct {
	Drives          map[string]*Drive `json:"drives"`
	TriggeredDrives []string          `json:"triggered_drives"`
	LastTick        time.Time         `json:"last_tick,omitzero"`
	Version         int               `json:"version"`
}

// Get returns the named drive or ErrDriveNotFound.
func (r *Registry) Get(name string) (*Drive, error) {
	d, ok := r.Drives[name]
	if !ok {
		return nil, ErrDriveNotFound
	}
	return d, nil
}

// Package mode governs what happens when a drive triggers: AUTO mode
// spawns engagement immediately, CHOICE mode surfaces the drive for an
// explicit decision. Both respect the cross-drive cooldown window and
// quiet-hours suppression; neither ever pauses accumulation or
// classification, only the spawn action itself is gated.
package mode

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"vagus/internal/drive"
)

// Mode selects the triggering behavior.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeChoice Mode = "choice"
)

// ParseMode validates a configured mode string, defaulting to choice.
func ParseMode(s string) Mode {
	if s == string(ModeAuto) {
		return ModeAuto
	}
	return ModeChoice
}

// Resolution is one of the three CHOICE-mode outcomes for a triggered
// drive.
type Resolution string

const (
	// ResolutionRecognize marks the drive as already being satisfied by
	// ongoing unrelated activity; an implicit auto-depth satisfaction
	// is applied.
	ResolutionRecognize Resolution = "recognize"

	// ResolutionEngage runs the explicit satisfaction flow.
	ResolutionEngage Resolution = "engage"

	// ResolutionDefer leaves the drive untouched for the next tick.
	ResolutionDefer Resolution = "defer"
)

// Action describes what the controller did (or declined to do) for one
// triggered drive on one tick.
type Action string

const (
	ActionSpawned     Action = "spawned"      // engagement requested
	ActionExposed     Action = "exposed"      // surfaced for CHOICE
	ActionCooldown    Action = "cooldown"     // blocked by the cooldown window
	ActionQuietQueued Action = "quiet_queued" // suppressed by quiet hours
	ActionHeld        Action = "held"         // engagement for this episode already spawned
)

// Decision records the controller's call for one triggered drive.
type Decision struct {
	Drive   string        `json:"drive"`
	Band    drive.Band    `json:"band"`
	Valence drive.Valence `json:"valence"`
	Action  Action        `json:"action"`
}

// Spawner is the opaque engagement side channel. The controller fires
// and forgets; completion only ever comes back as an explicit
// satisfaction call.
type Spawner interface {
	Spawn(driveName, prompt string, valence drive.Valence) error
}

// Controller applies mode, cooldown and quiet-hours policy.
type Controller struct {
	mode       Mode
	cooldown   time.Duration
	quietStart int // minutes since midnight
	quietEnd   int
	quietOn    bool
	spawner    Spawner
	log        *zap.Logger
}

// Config parameterizes a Controller.
type Config struct {
	Mode       Mode
	Cooldown   time.Duration
	QuietStart int
	QuietEnd   int
	QuietOn    bool
}

// NewController creates a mode controller.
func NewController(cfg Config, spawner Spawner, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		mode:       cfg.Mode,
		cooldown:   cfg.Cooldown,
		quietStart: cfg.QuietStart,
		quietEnd:   cfg.QuietEnd,
		quietOn:    cfg.QuietOn,
		spawner:    spawner,
		log:        log,
	}
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode { return c.mode }

// =============================================================================
// GATES
// =============================================================================

// LastSatisfaction returns the most recent satisfaction timestamp
// across every drive in the registry. The cooldown window is derived
// from this rather than stored, so it survives process restarts for
// free.
func LastSatisfaction(reg *drive.Registry) time.Time {
	var last time.Time
	for _, d := range reg.Drives {
		if t := d.LastSatisfiedAt(); t.After(last) {
			last = t
		}
	}
	return last
}

// CooldownRemaining reports how much of the cooldown window is left at
// now; zero means the gate is open.
func (c *Controller) CooldownRemaining(reg *drive.Registry, now time.Time) time.Duration {
	last := LastSatisfaction(reg)
	if last.IsZero() {
		return 0
	}
	remaining := c.cooldown - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InQuietHours reports whether now falls inside the quiet window.
// A window wrapping midnight (23:00–07:00) is handled.
func (c *Controller) InQuietHours(now time.Time) bool {
	if !c.quietOn {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if c.quietStart <= c.quietEnd {
		return minute >= c.quietStart && minute < c.quietEnd
	}
	return minute >= c.quietStart || minute < c.quietEnd
}

// =============================================================================
// TRIGGER HANDLING
// =============================================================================

// Dispatch processes the registry's triggered drives for one tick.
// AUTO mode spawns engagement unless gated; CHOICE mode exposes each
// triggered drive for a decision. Pressure accumulation and
// classification have already happened by the time this runs and are
// never affected by any gate. Successful spawns stamp LastSpawned on
// the drive, so the caller persists the registry after dispatching.
func (c *Controller) Dispatch(reg *drive.Registry, now time.Time) []Decision {
	var decisions []Decision
	for _, name := range reg.TriggeredDrives {
		d, err := reg.Get(name)
		if err != nil {
			continue
		}
		decisions = append(decisions, c.dispatchOne(reg, d, now))
	}
	return decisions
}

func (c *Controller) dispatchOne(reg *drive.Registry, d *drive.Drive, now time.Time) Decision {
	dec := Decision{Drive: d.Name, Band: d.Band(), Valence: d.Valence}

	if c.mode == ModeChoice {
		dec.Action = ActionExposed
		return dec
	}

	if c.InQuietHours(now) {
		// Queued, not dropped: the drive stays triggered and keeps
		// accumulating until quiet hours end.
		dec.Action = ActionQuietQueued
		return dec
	}
	if c.CooldownRemaining(reg, now) > 0 {
		dec.Action = ActionCooldown
		return dec
	}

	// One spawn per trigger episode. Episodes are delimited by
	// LastTriggered: the thwarting observer resets it each rearm cycle
	// and on re-crossing after a satisfaction, which re-arms the spawn.
	if !d.LastSpawned.IsZero() && !d.LastTriggered.After(d.LastSpawned) {
		dec.Action = ActionHeld
		return dec
	}

	if err := c.spawner.Spawn(d.Name, d.Description, d.Valence); err != nil {
		// Fire-and-forget: a failed handoff is logged and retried on a
		// later tick, never waited on.
		c.log.Warn("engagement spawn failed",
			zap.String("drive", d.Name),
			zap.Error(err))
		dec.Action = ActionCooldown
		return dec
	}
	c.log.Info("engagement spawned",
		zap.String("drive", d.Name),
		zap.String("valence", string(d.Valence)))
	d.LastSpawned = now
	dec.Action = ActionSpawned
	return dec
}

// Resolve applies a CHOICE-mode resolution to a triggered drive.
// RECOGNIZE applies an implicit auto-depth satisfaction; ENGAGE runs
// the explicit flow at the requested depth; DEFER changes nothing.
// Manual resolutions are exempt from cooldown gating since they are
// explicitly requested.
func (c *Controller) Resolve(reg *drive.Registry, name string, res Resolution, depth drive.Depth, now time.Time) (*drive.Result, error) {
	d, err := reg.Get(name)
	if err != nil {
		return nil, err
	}

	switch res {
	case ResolutionDefer:
		return nil, nil
	case ResolutionRecognize:
		result, err := drive.Satisfy(d, drive.DepthAuto, drive.SourceAuto, now)
		if err != nil {
			return nil, err
		}
		return &result, nil
	case ResolutionEngage:
		if depth == "" {
			depth = drive.DepthAuto
		}
		result, err := drive.Satisfy(d, depth, drive.SourceManual, now)
		if err != nil {
			return nil, err
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("unknown resolution %q", res)
	}
}

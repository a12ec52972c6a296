// Package tick runs the periodic update pass: accumulate pressure for
// the elapsed wall-clock time, fold latent aspects into their parents,
// update thwarting and valence, refresh the triggered cache, and hand
// the result to the mode controller. One tick is one load-mutate-save
// cycle against the state store, so a crash between ticks loses at
// most one interval of bookkeeping.
package tick

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vagus/internal/aspect"
	"vagus/internal/drive"
	"vagus/internal/mode"
	"vagus/internal/registry"
)

// SessionCounter reports how many agent sessions ran since a point in
// time. Activity-driven drives accumulate from this instead of
// elapsed hours.
type SessionCounter interface {
	CountSessionsSince(since time.Time) (int, error)
}

// Report summarizes one completed tick.
type Report struct {
	At         time.Time                 `json:"at"`
	Hours      float64                   `json:"hours"`
	Sessions   int                       `json:"sessions"`
	Triggered  []string                  `json:"triggered"`
	Decisions  []mode.Decision           `json:"decisions,omitempty"`
	Advisories []drive.ThresholdAdvisory `json:"advisories,omitempty"`
}

// Ticker owns the periodic pass.
type Ticker struct {
	store      *registry.Store
	sessions   SessionCounter
	controller *mode.Controller
	interval   time.Duration
	rearm      time.Duration
	log        *zap.Logger
}

// NewTicker wires a tick loop. sessions may be nil when no journal is
// available; activity-driven drives then stay flat.
func NewTicker(store *registry.Store, sessions SessionCounter, controller *mode.Controller, interval, rearm time.Duration, log *zap.Logger) *Ticker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ticker{
		store:      store,
		sessions:   sessions,
		controller: controller,
		interval:   interval,
		rearm:      rearm,
		log:        log,
	}
}

// Tick runs one full update pass at now and returns a report.
func (t *Ticker) Tick(now time.Time) (*Report, error) {
	report := &Report{At: now}

	reg, err := t.store.Update(func(reg *drive.Registry) error {
		var hours float64
		if !reg.LastTick.IsZero() {
			hours = now.Sub(reg.LastTick).Hours()
		}
		if hours < 0 {
			// Clock went backwards; stamp and move on.
			hours = 0
		}
		report.Hours = hours

		sessions := 0
		if t.sessions != nil && !reg.LastTick.IsZero() {
			n, err := t.sessions.CountSessionsSince(reg.LastTick)
			if err != nil {
				t.log.Warn("session count unavailable", zap.Error(err))
			} else {
				sessions = n
			}
		}
		report.Sessions = sessions

		for _, d := range reg.Drives {
			if d.Status != drive.StatusActive {
				continue
			}
			if d.ActivityDriven {
				d.Pressure = drive.AccumulateEvents(d, sessions)
			} else {
				d.Pressure = drive.Accumulate(d, hours)
			}
		}

		// Latent aspects accumulate on their own and feed the parent.
		aspect.FoldLatent(reg, hours)

		for _, d := range reg.Drives {
			if d.Status != drive.StatusActive {
				continue
			}
			if drive.ObserveThwarting(d, now, t.rearm) {
				t.log.Info("drive thwarted",
					zap.String("drive", d.Name),
					zap.Int("count", d.ThwartingCount))
			}
			drive.RecomputeValence(d)
			if adv := drive.AdviseThreshold(d); adv != nil {
				report.Advisories = append(report.Advisories, *adv)
			}
		}

		registry.RefreshTriggered(reg)
		reg.LastTick = now

		// Dispatch inside the cycle: spawn stamps land in the same
		// atomic write as the tick's bookkeeping.
		if t.controller != nil {
			report.Decisions = t.controller.Dispatch(reg, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Triggered = append(report.Triggered, reg.TriggeredDrives...)

	t.log.Debug("tick complete",
		zap.Float64("hours", report.Hours),
		zap.Int("sessions", report.Sessions),
		zap.Strings("triggered", report.Triggered))
	return report, nil
}

// Run ticks immediately, then on every interval until ctx is
// cancelled. Downtime is not lost: the first tick accumulates the
// whole gap since the persisted last_tick.
func (t *Ticker) Run(ctx context.Context) error {
	if _, err := t.Tick(time.Now().UTC()); err != nil {
		t.log.Error("tick failed", zap.Error(err))
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := t.Tick(now.UTC()); err != nil {
				t.log.Error("tick failed", zap.Error(err))
			}
		}
	}
}

package mode

import (
	"errors"
	"testing"
	"time"

	"vagus/internal/drive"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// TEST FIXTURES
// =============================================================================

type recordingSpawner struct {
	spawned []string
	fail    bool
}

func (s *recordingSpawner) Spawn(driveName, prompt string, valence drive.Valence) error {
	if s.fail {
		return errors.New("spool unavailable")
	}
	s.spawned = append(s.spawned, driveName)
	return nil
}

func triggeredRegistry(names ...string) *drive.Registry {
	reg := &drive.Registry{
		Drives:  map[string]*drive.Drive{},
		Version: 1,
	}
	for _, n := range names {
		reg.Drives[n] = &drive.Drive{
			Name:        n,
			Description: "drive " + n,
			Pressure:    25,
			Threshold:   20,
			RatePerHour: 2,
			Status:      drive.StatusActive,
			Valence:     drive.ValenceAppetitive,
			Category:    drive.CategoryCore,
		}
		reg.TriggeredDrives = append(reg.TriggeredDrives, n)
	}
	return reg
}

func newController(m Mode, sp Spawner) *Controller {
	return NewController(Config{
		Mode:       m,
		Cooldown:   30 * time.Minute,
		QuietStart: 23 * 60,
		QuietEnd:   7 * 60,
		QuietOn:    true,
	}, sp, nil)
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestDispatch_AutoSpawnsTriggered(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY", "REST")

	decisions := c.Dispatch(reg, testNow)
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(decisions))
	}
	for _, d := range decisions {
		if d.Action != ActionSpawned {
			t.Errorf("%s action = %s, want spawned", d.Drive, d.Action)
		}
	}
	if len(sp.spawned) != 2 {
		t.Errorf("spawned %v, want both drives", sp.spawned)
	}
}

func TestDispatch_ChoiceOnlyExposes(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeChoice, sp)
	reg := triggeredRegistry("CURIOSITY")

	decisions := c.Dispatch(reg, testNow)
	if len(decisions) != 1 || decisions[0].Action != ActionExposed {
		t.Fatalf("decisions = %+v, want single exposed", decisions)
	}
	if len(sp.spawned) != 0 {
		t.Errorf("choice mode spawned %v", sp.spawned)
	}
}

func TestDispatch_CooldownBlocksAutoSpawn(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY", "REST")

	// REST was satisfied ten minutes ago: the window covers every drive.
	if _, err := drive.Satisfy(reg.Drives["REST"], drive.DepthShallow, drive.SourceManual, testNow.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}

	decisions := c.Dispatch(reg, testNow)
	for _, d := range decisions {
		if d.Action != ActionCooldown {
			t.Errorf("%s action = %s, want cooldown", d.Drive, d.Action)
		}
	}
	if len(sp.spawned) != 0 {
		t.Errorf("spawned inside cooldown: %v", sp.spawned)
	}
}

func TestDispatch_CooldownExpired(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY")

	if _, err := drive.Satisfy(reg.Drives["CURIOSITY"], drive.DepthShallow, drive.SourceManual, testNow.Add(-45*time.Minute)); err != nil {
		t.Fatal(err)
	}
	// Re-inflate past the threshold after the satisfaction drained it.
	reg.Drives["CURIOSITY"].Pressure = 25

	decisions := c.Dispatch(reg, testNow)
	if decisions[0].Action != ActionSpawned {
		t.Errorf("action = %s, want spawned after window elapsed", decisions[0].Action)
	}
}

func TestDispatch_QuietHoursQueues(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY")

	night := time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC)
	decisions := c.Dispatch(reg, night)
	if decisions[0].Action != ActionQuietQueued {
		t.Fatalf("action = %s, want quiet_queued", decisions[0].Action)
	}
	if len(sp.spawned) != 0 {
		t.Errorf("spawned during quiet hours: %v", sp.spawned)
	}

	// The drive stays in the triggered cache; morning dispatch fires.
	morning := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	decisions = c.Dispatch(reg, morning)
	if decisions[0].Action != ActionSpawned {
		t.Errorf("morning action = %s, want spawned", decisions[0].Action)
	}
}

func TestDispatch_AutoSpawnsOncePerTriggerEpisode(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY")
	d := reg.Drives["CURIOSITY"]
	rearm := 4 * time.Hour

	// One tick: observe thwarting state, then dispatch.
	tickAt := func(at time.Time) Decision {
		drive.ObserveThwarting(d, at, rearm)
		return c.Dispatch(reg, at)[0]
	}

	if dec := tickAt(testNow); dec.Action != ActionSpawned {
		t.Fatalf("first tick action = %s, want spawned", dec.Action)
	}

	// Still triggered on subsequent ticks: the episode already spawned.
	for _, offset := range []time.Duration{15 * time.Minute, 30 * time.Minute} {
		if dec := tickAt(testNow.Add(offset)); dec.Action != ActionHeld {
			t.Errorf("tick at +%s action = %s, want held", offset, dec.Action)
		}
	}
	if len(sp.spawned) != 1 {
		t.Fatalf("uninterrupted episode spawned %v, want exactly one request", sp.spawned)
	}

	// A full rearm period without satisfaction starts a new episode.
	if dec := tickAt(testNow.Add(rearm)); dec.Action != ActionSpawned {
		t.Errorf("post-rearm action = %s, want spawned", dec.Action)
	}
	if len(sp.spawned) != 2 {
		t.Errorf("spawned %v, want a second request after the rearm period", sp.spawned)
	}

	// Satisfaction ends the episode; a later re-crossing spawns again.
	if _, err := drive.Satisfy(d, drive.DepthDeep, drive.SourceManual, testNow.Add(rearm+time.Hour)); err != nil {
		t.Fatal(err)
	}
	d.Pressure = 25
	if dec := tickAt(testNow.Add(rearm + 2*time.Hour)); dec.Action != ActionSpawned {
		t.Errorf("re-crossing action = %s, want spawned", dec.Action)
	}
	if len(sp.spawned) != 3 {
		t.Errorf("spawned %v, want a third request after re-crossing", sp.spawned)
	}
}

func TestDispatch_SpawnFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	sp := &recordingSpawner{fail: true}
	c := newController(ModeAuto, sp)
	reg := triggeredRegistry("CURIOSITY")

	decisions := c.Dispatch(reg, testNow)
	if decisions[0].Action == ActionSpawned {
		t.Error("failed spawn reported as spawned")
	}
}

// =============================================================================
// GATES
// =============================================================================

func TestInQuietHours_WrapsMidnight(t *testing.T) {
	t.Parallel()

	c := newController(ModeAuto, &recordingSpawner{})
	cases := []struct {
		hour, minute int
		want         bool
	}{
		{22, 59, false},
		{23, 0, true},
		{23, 30, true},
		{2, 0, true},
		{6, 59, true},
		{7, 0, false},
		{12, 0, false},
	}
	for _, tt := range cases {
		at := time.Date(2026, 3, 1, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := c.InQuietHours(at); got != tt.want {
			t.Errorf("InQuietHours(%02d:%02d) = %v, want %v", tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestInQuietHours_Disabled(t *testing.T) {
	t.Parallel()

	c := NewController(Config{Mode: ModeAuto, Cooldown: time.Minute}, &recordingSpawner{}, nil)
	night := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if c.InQuietHours(night) {
		t.Error("quiet hours reported while disabled")
	}
}

func TestCooldownRemaining_NoHistory(t *testing.T) {
	t.Parallel()

	c := newController(ModeAuto, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")
	if got := c.CooldownRemaining(reg, testNow); got != 0 {
		t.Errorf("remaining = %s with no satisfaction history", got)
	}
}

// =============================================================================
// RESOLUTIONS
// =============================================================================

func TestResolve_RecognizeAppliesAutoDepth(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")

	res, err := c.Resolve(reg, "CURIOSITY", ResolutionRecognize, "", testNow)
	if err != nil {
		t.Fatal(err)
	}
	// Triggered band, appetitive: auto maps to deep (0.75). 25*(1-.75).
	if res.PressureAfter != 6.25 {
		t.Errorf("pressure = %v, want 6.25", res.PressureAfter)
	}
	events := reg.Drives["CURIOSITY"].SatisfactionEvents
	if len(events) != 1 || events[0].Source != drive.SourceAuto {
		t.Errorf("events = %+v, want one auto-sourced event", events)
	}
}

func TestResolve_EngageUsesRequestedDepth(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")

	res, err := c.Resolve(reg, "CURIOSITY", ResolutionEngage, drive.DepthShallow, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.PressureAfter != 18.75 {
		t.Errorf("pressure = %v, want 18.75 after shallow", res.PressureAfter)
	}
}

func TestResolve_ManualSatisfactionExemptFromCooldown(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY", "REST")

	// REST was satisfied five minutes ago, so the autonomous-spawn
	// cooldown is active for every drive.
	if _, err := drive.Satisfy(reg.Drives["REST"], drive.DepthShallow, drive.SourceManual, testNow.Add(-5*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if c.CooldownRemaining(reg, testNow) == 0 {
		t.Fatal("cooldown window should be active")
	}

	// Explicitly requested engagement goes through regardless.
	res, err := c.Resolve(reg, "CURIOSITY", ResolutionEngage, drive.DepthShallow, testNow)
	if err != nil {
		t.Fatalf("engage inside cooldown: %v", err)
	}
	if res.PressureAfter != 18.75 {
		t.Errorf("pressure = %v, want 18.75, satisfaction must apply", res.PressureAfter)
	}
	if len(reg.Drives["CURIOSITY"].SatisfactionEvents) != 1 {
		t.Error("no satisfaction event recorded inside cooldown")
	}

	// Recognize is equally exempt.
	reg.Drives["CURIOSITY"].Pressure = 25
	if _, err := c.Resolve(reg, "CURIOSITY", ResolutionRecognize, "", testNow.Add(time.Minute)); err != nil {
		t.Errorf("recognize inside cooldown: %v", err)
	}
	if len(reg.Drives["CURIOSITY"].SatisfactionEvents) != 2 {
		t.Error("recognize did not record a satisfaction event")
	}
}

func TestResolve_DeferLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")

	res, err := c.Resolve(reg, "CURIOSITY", ResolutionDefer, "", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("defer produced a result: %+v", res)
	}
	if got := reg.Drives["CURIOSITY"].Pressure; got != 25 {
		t.Errorf("pressure = %v, want 25 untouched", got)
	}
}

func TestResolve_UnknownDrive(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")

	if _, err := c.Resolve(reg, "NOPE", ResolutionEngage, drive.DepthShallow, testNow); !errors.Is(err, drive.ErrDriveNotFound) {
		t.Errorf("err = %v, want ErrDriveNotFound", err)
	}
}

func TestResolve_UnknownResolution(t *testing.T) {
	t.Parallel()

	c := newController(ModeChoice, &recordingSpawner{})
	reg := triggeredRegistry("CURIOSITY")

	if _, err := c.Resolve(reg, "CURIOSITY", Resolution("shrug"), "", testNow); err == nil {
		t.Error("expected error for unknown resolution")
	}
}

package tick

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"vagus/internal/drive"
	"vagus/internal/mode"
	"vagus/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// opencensus (transitive dep of google.golang.org/genai) starts a
		// metrics worker in package init that never exits.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// TEST FIXTURES
// =============================================================================

type fixedSessions struct {
	n   int
	err error
}

func (f fixedSessions) CountSessionsSince(time.Time) (int, error) { return f.n, f.err }

type collectingSpawner struct {
	spawned []string
}

func (s *collectingSpawner) Spawn(driveName, prompt string, valence drive.Valence) error {
	s.spawned = append(s.spawned, driveName)
	return nil
}

func newTestStore(t *testing.T, reg *drive.Registry) *registry.Store {
	t.Helper()
	store := registry.NewStore(filepath.Join(t.TempDir(), "drives.json"))
	if err := store.Save(reg); err != nil {
		t.Fatal(err)
	}
	return store
}

func seededRegistry(lastTick time.Time) *drive.Registry {
	reg := registry.Seed(testNow.Add(-240 * time.Hour))
	reg.LastTick = lastTick
	return reg
}

// =============================================================================
// SINGLE TICK
// =============================================================================

func TestTick_AccumulatesElapsedHours(t *testing.T) {
	reg := seededRegistry(testNow.Add(-10 * time.Hour))
	store := newTestStore(t, reg)
	ticker := NewTicker(store, nil, nil, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if report.Hours != 10 {
		t.Errorf("hours = %v, want 10", report.Hours)
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	// CURIOSITY: rate 2/h over 10h from zero.
	if got := after.Drives["CURIOSITY"].Pressure; got != 20 {
		t.Errorf("CURIOSITY pressure = %v, want 20", got)
	}
	// REST: rate 1/h, threshold 16: 10/16 is available, not triggered.
	if got := after.Drives["REST"].Band(); got != drive.BandAvailable {
		t.Errorf("REST band = %s, want available", got)
	}
	if !after.LastTick.Equal(testNow) {
		t.Errorf("last_tick = %s, want %s", after.LastTick, testNow)
	}
}

func TestTick_FirstTickOnlyStamps(t *testing.T) {
	reg := seededRegistry(time.Time{})
	store := newTestStore(t, reg)
	ticker := NewTicker(store, nil, nil, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if report.Hours != 0 {
		t.Errorf("hours = %v, want 0 on first tick", report.Hours)
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := after.Drives["CURIOSITY"].Pressure; got != 0 {
		t.Errorf("pressure = %v, want 0 with no elapsed time", got)
	}
	if !after.LastTick.Equal(testNow) {
		t.Errorf("last_tick not stamped: %s", after.LastTick)
	}
}

func TestTick_ActivityDrivenUsesSessions(t *testing.T) {
	reg := seededRegistry(testNow.Add(-2 * time.Hour))
	store := newTestStore(t, reg)
	ticker := NewTicker(store, fixedSessions{n: 3}, nil, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sessions != 3 {
		t.Errorf("sessions = %d, want 3", report.Sessions)
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	// ACCOMPLISHMENT: 3 sessions at rate 2 per event.
	if got := after.Drives["ACCOMPLISHMENT"].Pressure; got != 6 {
		t.Errorf("ACCOMPLISHMENT pressure = %v, want 6", got)
	}
}

func TestTick_SessionCountFailureIsNonFatal(t *testing.T) {
	reg := seededRegistry(testNow.Add(-5 * time.Hour))
	store := newTestStore(t, reg)
	ticker := NewTicker(store, fixedSessions{err: errors.New("db locked")}, nil, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sessions != 0 {
		t.Errorf("sessions = %d, want 0 on journal error", report.Sessions)
	}
	if report.Hours != 5 {
		t.Errorf("hours = %v, time accumulation must still run", report.Hours)
	}
}

func TestTick_RefreshesTriggeredAndDispatches(t *testing.T) {
	reg := seededRegistry(testNow.Add(-12 * time.Hour))
	store := newTestStore(t, reg)

	sp := &collectingSpawner{}
	controller := mode.NewController(mode.Config{
		Mode:     mode.ModeAuto,
		Cooldown: 30 * time.Minute,
	}, sp, nil)
	ticker := NewTicker(store, nil, controller, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	// After 12h: CURIOSITY 24/20 triggered, CARE 18/20 elevated,
	// EXPRESSION 18/24 elevated, REST 12/16 available.
	if len(report.Triggered) != 1 || report.Triggered[0] != "CURIOSITY" {
		t.Fatalf("triggered = %v, want [CURIOSITY]", report.Triggered)
	}
	if len(sp.spawned) != 1 || sp.spawned[0] != "CURIOSITY" {
		t.Errorf("spawned = %v, want [CURIOSITY]", sp.spawned)
	}
	if len(report.Decisions) != 1 || report.Decisions[0].Action != mode.ActionSpawned {
		t.Errorf("decisions = %+v", report.Decisions)
	}
}

func TestTick_SpawnsOnceWhileDriveStaysTriggered(t *testing.T) {
	reg := seededRegistry(testNow.Add(-12 * time.Hour))
	store := newTestStore(t, reg)

	sp := &collectingSpawner{}
	controller := mode.NewController(mode.Config{
		Mode:     mode.ModeAuto,
		Cooldown: 30 * time.Minute,
	}, sp, nil)
	ticker := NewTicker(store, nil, controller, time.Minute, 4*time.Hour, nil)

	// CURIOSITY crosses into triggered on the first tick and stays
	// there; only the first tick of the episode may spawn.
	for i := 0; i < 3; i++ {
		if _, err := ticker.Tick(testNow.Add(time.Duration(i) * 15 * time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	if len(sp.spawned) != 1 {
		t.Fatalf("spawned %v across one episode, want exactly one request", sp.spawned)
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	// The spawn stamp is persisted with the tick's write, so a restart
	// cannot re-open the episode.
	if !after.Drives["CURIOSITY"].LastSpawned.Equal(testNow) {
		t.Errorf("last_spawned = %s, want %s", after.Drives["CURIOSITY"].LastSpawned, testNow)
	}
}

func TestTick_ThwartingAccruesAcrossRearms(t *testing.T) {
	reg := seededRegistry(testNow.Add(-12 * time.Hour))
	// Already triggered once, rearm period long past.
	reg.Drives["CURIOSITY"].Pressure = 25
	reg.Drives["CURIOSITY"].LastTriggered = testNow.Add(-6 * time.Hour)
	reg.Drives["CURIOSITY"].ThwartingCount = 1
	store := newTestStore(t, reg)
	ticker := NewTicker(store, nil, nil, time.Minute, 4*time.Hour, nil)

	if _, err := ticker.Tick(testNow); err != nil {
		t.Fatal(err)
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	d := after.Drives["CURIOSITY"]
	if d.ThwartingCount != 2 {
		t.Errorf("thwarting = %d, want 2", d.ThwartingCount)
	}
	// Count 2 at a triggered-or-above band flips aversive.
	if d.Valence != drive.ValenceAversive {
		t.Errorf("valence = %s, want aversive", d.Valence)
	}
}

func TestTick_ClockBackwardsIsNoop(t *testing.T) {
	reg := seededRegistry(testNow.Add(2 * time.Hour))
	store := newTestStore(t, reg)
	ticker := NewTicker(store, nil, nil, time.Minute, 4*time.Hour, nil)

	report, err := ticker.Tick(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if report.Hours != 0 {
		t.Errorf("hours = %v, want 0 when clock regressed", report.Hours)
	}
}

// =============================================================================
// LOOP LIFECYCLE
// =============================================================================

func TestRun_StopsOnCancel(t *testing.T) {
	reg := seededRegistry(time.Time{})
	store := newTestStore(t, reg)
	ticker := NewTicker(store, nil, nil, 10*time.Millisecond, 4*time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ticker.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	after, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if after.LastTick.IsZero() {
		t.Error("loop never ticked")
	}
}

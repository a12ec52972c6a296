package aspect

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vagus/internal/drive"
	"vagus/internal/embedding"
	"vagus/internal/journal"
	"vagus/internal/registry"
)

func newTestManager(t *testing.T, budget Budget) (*Manager, *registry.Store, *journal.Store) {
	t.Helper()
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "drives.json"))
	jnl, err := journal.NewStore(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { jnl.Close() })

	m := NewManager(store, jnl, embedding.NewHashEngine(), 0.70, budget, zap.NewNop())
	return m, store, jnl
}

func defaultBudget() Budget {
	return Budget{DailyLimit: 50.0, ActivationCost: 2.50}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// DISCOVERY TESTS
// =============================================================================

func TestDiscover_SimilarCandidateGoesToPendingReview(t *testing.T) {
	m, store, jnl := newTestManager(t, defaultBudget())

	// Seed CURIOSITY with a known description, then discover a
	// candidate that reuses most of its vocabulary.
	_, err := store.Update(func(reg *drive.Registry) error {
		d, err := reg.Get("CURIOSITY")
		if err != nil {
			return err
		}
		d.Description = "explore something unfamiliar, follow an open question"
		return nil
	})
	require.NoError(t, err)

	cand, err := m.Discover(context.Background(), "BOREDOM",
		"explore something unfamiliar when restless, follow an open question idly", testNow)
	require.NoError(t, err)
	assert.Equal(t, journal.CandidatePending, cand.Status)
	require.NotEmpty(t, cand.SimilarTo)
	assert.Equal(t, "CURIOSITY", cand.SimilarTo[0].Drive)
	assert.GreaterOrEqual(t, cand.SimilarTo[0].Score, 0.70)

	// Not in the registry yet.
	reg, err := store.Load()
	require.NoError(t, err)
	_, err = reg.Get("BOREDOM")
	assert.ErrorIs(t, err, drive.ErrDriveNotFound)

	pending, err := jnl.PendingCandidates()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "BOREDOM", pending[0].Name)
}

func TestDiscover_NovelCandidateActivatesImmediately(t *testing.T) {
	m, store, _ := newTestManager(t, defaultBudget())

	cand, err := m.Discover(context.Background(), "TIDEWATCH",
		"monitor coastal sensor buoys overnight for anomalous salinity spikes", testNow)
	require.NoError(t, err)
	assert.Equal(t, journal.CandidateActivated, cand.Status)

	reg, err := store.Load()
	require.NoError(t, err)
	d, err := reg.Get("TIDEWATCH")
	require.NoError(t, err)
	assert.Equal(t, drive.StatusActive, d.Status)
	assert.Equal(t, drive.CategoryDiscovered, d.Category)
	assert.Zero(t, d.Pressure)
}

func TestDiscover_RejectsExistingName(t *testing.T) {
	m, _, _ := newTestManager(t, defaultBudget())
	_, err := m.Discover(context.Background(), "CURIOSITY", "anything", testNow)
	assert.Error(t, err)
}

// =============================================================================
// CONSOLIDATION TESTS
// =============================================================================

func consolidateCandidate(t *testing.T, m *Manager, jnl *journal.Store, name, parent string) {
	t.Helper()
	_, err := jnl.SaveCandidate(journal.Candidate{
		Name:        name,
		Description: "recurring pattern " + name,
		ObservedAt:  testNow,
		SimilarTo:   []journal.SimilarityScore{{Drive: parent, Score: 0.9}},
	})
	require.NoError(t, err)
	require.NoError(t, m.Consolidate(name, parent, testNow))
}

func TestConsolidate_MakesLatentAspect(t *testing.T) {
	m, store, jnl := newTestManager(t, defaultBudget())
	consolidateCandidate(t, m, jnl, "BOREDOM", "CURIOSITY")

	reg, err := store.Load()
	require.NoError(t, err)

	b, err := reg.Get("BOREDOM")
	require.NoError(t, err)
	assert.Equal(t, drive.StatusLatent, b.Status)
	assert.Equal(t, "CURIOSITY", b.AspectOf)
	assert.False(t, b.Triggerable(), "latent drives must never independently trigger")
	assert.Equal(t, testNow, b.ConsolidatedAt)

	p, err := reg.Get("CURIOSITY")
	require.NoError(t, err)
	assert.Contains(t, p.Aspects, "BOREDOM")

	// Candidate left the pending queue.
	pending, err := jnl.PendingCandidates()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConsolidate_CapAtFiveAspects(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())

	names := []string{"A1", "A2", "A3", "A4", "A5"}
	for _, n := range names {
		consolidateCandidate(t, m, jnl, n, "CURIOSITY")
	}

	_, err := jnl.SaveCandidate(journal.Candidate{
		Name: "A6", Description: "one too many", ObservedAt: testNow,
		SimilarTo: []journal.SimilarityScore{{Drive: "CURIOSITY", Score: 0.9}},
	})
	require.NoError(t, err)
	err = m.Consolidate("A6", "CURIOSITY", testNow)
	assert.ErrorIs(t, err, ErrAspectCapacity)

	// The refused candidate stays pending for a later decision.
	pending, perr := jnl.PendingCandidates()
	require.NoError(t, perr)
	require.Len(t, pending, 1)
	assert.Equal(t, "A6", pending[0].Name)
}

func TestConsolidate_UnknownParent(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())
	_, err := jnl.SaveCandidate(journal.Candidate{
		Name: "X", Description: "x", ObservedAt: testNow,
		SimilarTo: []journal.SimilarityScore{},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Consolidate("X", "NO_SUCH_DRIVE", testNow), drive.ErrDriveNotFound)
}

func TestDismissCandidate(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())
	_, err := jnl.SaveCandidate(journal.Candidate{
		Name: "NOISE", Description: "not really a drive", ObservedAt: testNow,
		SimilarTo: []journal.SimilarityScore{},
	})
	require.NoError(t, err)

	require.NoError(t, m.DismissCandidate("NOISE"))
	pending, err := jnl.PendingCandidates()
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, m.DismissCandidate("NOISE"), journal.ErrCandidateNotFound)
}

// =============================================================================
// REACTIVATION / BUDGET TESTS
// =============================================================================

func TestReactivate_RestoresIndependence(t *testing.T) {
	m, store, jnl := newTestManager(t, defaultBudget())
	consolidateCandidate(t, m, jnl, "BOREDOM", "CURIOSITY")

	require.NoError(t, m.Reactivate("BOREDOM", testNow))

	reg, err := store.Load()
	require.NoError(t, err)
	b, err := reg.Get("BOREDOM")
	require.NoError(t, err)
	assert.Equal(t, drive.StatusActive, b.Status)
	assert.Empty(t, b.AspectOf)

	p, err := reg.Get("CURIOSITY")
	require.NoError(t, err)
	assert.NotContains(t, p.Aspects, "BOREDOM")

	spent, err := jnl.SpentOn(testNow)
	require.NoError(t, err)
	assert.InDelta(t, 2.50, spent, 1e-9)
}

func TestReactivate_RefusedWhenBudgetWouldBeExceeded(t *testing.T) {
	// A day already at $48 of the $50 limit; one activation costs $2.50.
	m, store, jnl := newTestManager(t, defaultBudget())
	consolidateCandidate(t, m, jnl, "BOREDOM", "CURIOSITY")
	require.NoError(t, jnl.RecordSpend("CARE", 48.0, testNow))

	err := m.Reactivate("BOREDOM", testNow)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	// Refusal must not mutate the registry.
	reg, lerr := store.Load()
	require.NoError(t, lerr)
	b, gerr := reg.Get("BOREDOM")
	require.NoError(t, gerr)
	assert.Equal(t, drive.StatusLatent, b.Status)
}

func TestReactivate_BudgetResetsNextDay(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())
	consolidateCandidate(t, m, jnl, "BOREDOM", "CURIOSITY")
	require.NoError(t, jnl.RecordSpend("CARE", 48.0, testNow))

	nextDay := testNow.Add(24 * time.Hour)
	assert.NoError(t, m.Reactivate("BOREDOM", nextDay))
}

func TestReactivate_NonLatentDrive(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())
	assert.ErrorIs(t, m.Reactivate("CURIOSITY", testNow), ErrNotLatent)

	// The refusal happens before the ledger is touched.
	spent, err := jnl.SpentOn(testNow)
	require.NoError(t, err)
	assert.Zero(t, spent)
}

// failingLedger wraps the real store but refuses spend writes.
type failingLedger struct {
	*journal.Store
}

func (failingLedger) RecordSpend(string, float64, time.Time) error {
	return errors.New("ledger unavailable")
}

func TestReactivate_LedgerFailureLeavesDriveLatent(t *testing.T) {
	m, store, jnl := newTestManager(t, defaultBudget())
	consolidateCandidate(t, m, jnl, "BOREDOM", "CURIOSITY")
	m.journal = failingLedger{jnl}

	require.Error(t, m.Reactivate("BOREDOM", testNow))

	// The charge comes first; a drive never activates without its
	// ledger row.
	reg, err := store.Load()
	require.NoError(t, err)
	b, err := reg.Get("BOREDOM")
	require.NoError(t, err)
	assert.Equal(t, drive.StatusLatent, b.Status)

	p, err := reg.Get("CURIOSITY")
	require.NoError(t, err)
	assert.Contains(t, p.Aspects, "BOREDOM")
}

func TestBudgetStatus(t *testing.T) {
	m, _, jnl := newTestManager(t, defaultBudget())
	require.NoError(t, jnl.RecordSpend("CARE", 12.5, testNow))

	st, err := m.BudgetStatus(testNow)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, st.Spent, 1e-9)
	assert.InDelta(t, 37.5, st.Remaining, 1e-9)
}

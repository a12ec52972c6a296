// Package aspect manages the lifecycle of dynamically discovered
// drives: discovery into a pending-review queue, consolidation as a
// latent aspect of an existing drive, periodic graduation review, and
// budget-gated reactivation.
package aspect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vagus/internal/drive"
	"vagus/internal/embedding"
	"vagus/internal/journal"
	"vagus/internal/registry"
)

var (
	// ErrAspectCapacity is returned when consolidation would push a
	// parent past MaxAspects children. An existing aspect must be
	// dismissed or graduated first.
	ErrAspectCapacity = errors.New("aspect capacity exceeded")

	// ErrBudgetExceeded is returned when reactivating a latent drive
	// would push today's spend past the daily limit.
	ErrBudgetExceeded = errors.New("budget limit reached")

	// ErrNotLatent is returned when activation or graduation review
	// targets a drive that is not a latent aspect.
	ErrNotLatent = errors.New("drive is not latent")
)

// Budget configures the daily reactivation spend gate.
type Budget struct {
	DailyLimit     float64
	ActivationCost float64
}

// Journal is the slice of the journal store the manager depends on:
// the candidate queue and the daily spend ledger.
type Journal interface {
	SaveCandidate(c journal.Candidate) (journal.Candidate, error)
	FindPendingCandidate(name string) (journal.Candidate, error)
	ResolveCandidate(id string, status journal.CandidateStatus) error
	SpentOn(at time.Time) (float64, error)
	RecordSpend(driveName string, cost float64, at time.Time) error
}

// Manager wires discovery, consolidation, graduation and reactivation
// together over the registry, the journal and the similarity backend.
type Manager struct {
	store    *registry.Store
	journal  Journal
	engine   embedding.Engine
	simFloor float64
	budget   Budget
	log      *zap.Logger
}

// NewManager creates an aspect manager. simFloor is the similarity
// threshold above which a new candidate is routed to pending review
// instead of activating independently.
func NewManager(store *registry.Store, jnl Journal, engine embedding.Engine, simFloor float64, budget Budget, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    store,
		journal:  jnl,
		engine:   engine,
		simFloor: simFloor,
		budget:   budget,
		log:      log,
	}
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Discover evaluates one candidate drive against the existing drive
// set. A candidate whose description scores above the similarity floor
// against any existing drive is queued for review with the scores
// attached; an unambiguously novel candidate becomes an independently
// active discovered drive immediately.
func (m *Manager) Discover(ctx context.Context, name, description string, now time.Time) (journal.Candidate, error) {
	reg, err := m.store.Load()
	if err != nil {
		return journal.Candidate{}, err
	}
	if _, ok := reg.Drives[name]; ok {
		return journal.Candidate{}, fmt.Errorf("drive %s already exists", name)
	}

	scores, err := m.scoreAgainst(ctx, description, reg)
	if err != nil {
		return journal.Candidate{}, err
	}

	cand := journal.Candidate{
		Name:        name,
		Description: description,
		ObservedAt:  now,
		SimilarTo:   scores,
	}

	if len(scores) > 0 && scores[0].Score >= m.simFloor {
		cand, err = m.journal.SaveCandidate(cand)
		if err != nil {
			return journal.Candidate{}, err
		}
		m.log.Info("candidate queued for review",
			zap.String("name", name),
			zap.String("most_similar", scores[0].Drive),
			zap.Float64("score", scores[0].Score))
		return cand, nil
	}

	// Novel enough to stand on its own.
	_, err = m.store.Update(func(reg *drive.Registry) error {
		reg.Drives[name] = &drive.Drive{
			Name:               name,
			Description:        description,
			Threshold:          20,
			RatePerHour:        1,
			Valence:            drive.ValenceNeutral,
			Status:             drive.StatusActive,
			Category:           drive.CategoryDiscovered,
			SatisfactionEvents: []drive.SatisfactionEvent{},
		}
		return nil
	})
	if err != nil {
		return journal.Candidate{}, err
	}
	cand.Status = journal.CandidateActivated
	cand, err = m.journal.SaveCandidate(cand)
	if err != nil {
		return journal.Candidate{}, err
	}
	m.log.Info("novel drive activated", zap.String("name", name))
	return cand, nil
}

// scoreAgainst embeds the description and ranks active drives by cosine
// similarity, highest first.
func (m *Manager) scoreAgainst(ctx context.Context, description string, reg *drive.Registry) ([]journal.SimilarityScore, error) {
	candVec, err := m.engine.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}

	var scores []journal.SimilarityScore
	for _, d := range reg.Drives {
		if d.Status != drive.StatusActive {
			continue
		}
		vec, err := m.engine.Embed(ctx, d.Description)
		if err != nil {
			return nil, fmt.Errorf("embed drive %s: %w", d.Name, err)
		}
		sim, err := embedding.CosineSimilarity(candVec, vec)
		if err != nil {
			return nil, err
		}
		scores = append(scores, journal.SimilarityScore{Drive: d.Name, Score: sim})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}

// =============================================================================
// CONSOLIDATION
// =============================================================================

// Consolidate resolves a pending candidate into a latent aspect of
// parent. The parent's aspect list is capped; at capacity the caller
// must dismiss or graduate an existing aspect first.
func (m *Manager) Consolidate(candidateName, parent string, now time.Time) error {
	cand, err := m.journal.FindPendingCandidate(candidateName)
	if err != nil {
		return err
	}

	_, err = m.store.Update(func(reg *drive.Registry) error {
		p, err := reg.Get(parent)
		if err != nil {
			return fmt.Errorf("parent %s: %w", parent, err)
		}
		if len(p.Aspects) >= drive.MaxAspects {
			return fmt.Errorf("%w: %s already has %d aspects", ErrAspectCapacity, parent, len(p.Aspects))
		}
		if _, ok := reg.Drives[cand.Name]; ok {
			return fmt.Errorf("drive %s already exists", cand.Name)
		}

		reg.Drives[cand.Name] = &drive.Drive{
			Name:               cand.Name,
			Description:        cand.Description,
			Threshold:          p.Threshold,
			RatePerHour:        p.RatePerHour / 2,
			Valence:            drive.ValenceNeutral,
			Status:             drive.StatusLatent,
			AspectOf:           parent,
			Category:           drive.CategoryDiscovered,
			ConsolidatedAt:     now,
			SatisfactionEvents: []drive.SatisfactionEvent{},
		}
		p.Aspects = append(p.Aspects, cand.Name)
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.journal.ResolveCandidate(cand.ID, journal.CandidateConsolidated); err != nil {
		return err
	}
	m.log.Info("candidate consolidated",
		zap.String("aspect", cand.Name),
		zap.String("parent", parent))
	return nil
}

// DismissCandidate drops a pending candidate without touching the
// registry.
func (m *Manager) DismissCandidate(candidateName string) error {
	cand, err := m.journal.FindPendingCandidate(candidateName)
	if err != nil {
		return err
	}
	return m.journal.ResolveCandidate(cand.ID, journal.CandidateDismissed)
}

// =============================================================================
// REACTIVATION
// =============================================================================

// BudgetStatus reports the day's spend against the configured limit.
type BudgetStatus struct {
	Spent     float64 `json:"spent"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
}

// BudgetStatus returns today's spend position.
func (m *Manager) BudgetStatus(now time.Time) (BudgetStatus, error) {
	spent, err := m.journal.SpentOn(now)
	if err != nil {
		return BudgetStatus{}, err
	}
	return BudgetStatus{
		Spent:     spent,
		Limit:     m.budget.DailyLimit,
		Remaining: m.budget.DailyLimit - spent,
	}, nil
}

// Reactivate makes a latent drive independently triggerable again,
// gated by the daily spend budget: if today's incurred cost plus one
// activation would exceed the limit, the reactivation is refused.
func (m *Manager) Reactivate(name string, now time.Time) error {
	spent, err := m.journal.SpentOn(now)
	if err != nil {
		return err
	}
	if spent+m.budget.ActivationCost > m.budget.DailyLimit {
		return fmt.Errorf("%w: spent %.2f + activation %.2f would exceed daily limit %.2f",
			ErrBudgetExceeded, spent, m.budget.ActivationCost, m.budget.DailyLimit)
	}

	// Validate the target before touching the ledger.
	reg, err := m.store.Load()
	if err != nil {
		return err
	}
	d, err := reg.Get(name)
	if err != nil {
		return err
	}
	if d.Status != drive.StatusLatent {
		return fmt.Errorf("%w: %s", ErrNotLatent, name)
	}

	// Charge first: a drive never activates without its ledger row.
	// A failed activation after a successful charge leaves the gate
	// tight rather than loose.
	if err := m.journal.RecordSpend(name, m.budget.ActivationCost, now); err != nil {
		return fmt.Errorf("recording activation spend: %w", err)
	}

	_, err = m.store.Update(func(reg *drive.Registry) error {
		d, err := reg.Get(name)
		if err != nil {
			return err
		}
		if d.Status != drive.StatusLatent {
			return fmt.Errorf("%w: %s", ErrNotLatent, name)
		}

		if parent, perr := reg.Get(d.AspectOf); perr == nil {
			parent.Aspects = removeString(parent.Aspects, name)
		}
		d.Status = drive.StatusActive
		d.AspectOf = ""
		d.ConsolidatedAt = time.Time{}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info("latent drive reactivated",
		zap.String("name", name),
		zap.Float64("cost", m.budget.ActivationCost))
	return nil
}

// KeepLatent records an explicit decision to leave a latent drive where
// it is. The decision clears graduation pressure by resetting the
// aspect's satisfaction counter window.
func (m *Manager) KeepLatent(name string) error {
	_, err := m.store.Update(func(reg *drive.Registry) error {
		d, err := reg.Get(name)
		if err != nil {
			return err
		}
		if d.Status != drive.StatusLatent {
			return fmt.Errorf("%w: %s", ErrNotLatent, name)
		}
		d.SatisfactionCount = 0
		return nil
	})
	return err
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

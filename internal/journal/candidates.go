package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrCandidateNotFound is returned when a review decision names an
// unknown or already-resolved candidate.
var ErrCandidateNotFound = errors.New("candidate not found")

// CandidateStatus tracks a discovered drive through review.
type CandidateStatus string

const (
	CandidatePending      CandidateStatus = "pending"
	CandidateDismissed    CandidateStatus = "dismissed"
	CandidateConsolidated CandidateStatus = "consolidated"
	CandidateActivated    CandidateStatus = "activated"
)

// SimilarityScore pairs an existing drive with how closely a candidate's
// description matches it.
type SimilarityScore struct {
	Drive string  `json:"drive"`
	Score float64 `json:"score"`
}

// Candidate is a dynamically discovered drive awaiting review.
type Candidate struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ObservedAt  time.Time         `json:"observed_at"`
	SimilarTo   []SimilarityScore `json:"similar_to"`
	Status      CandidateStatus   `json:"status"`
}

func (s *Store) initCandidateSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		observed_at DATETIME NOT NULL,
		similar_json TEXT NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCandidate queues a discovered drive for review.
func (s *Store) SaveCandidate(c Candidate) (Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = CandidatePending
	}
	simJSON, err := json.Marshal(c.SimilarTo)
	if err != nil {
		return Candidate{}, fmt.Errorf("marshal similarity scores: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO candidates (id, name, description, observed_at, similar_json, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.ObservedAt.UTC().Format(time.RFC3339Nano),
		string(simJSON), string(c.Status),
	)
	if err != nil {
		return Candidate{}, fmt.Errorf("insert candidate: %w", err)
	}
	return c, nil
}

// PendingCandidates returns the review queue, oldest first.
func (s *Store) PendingCandidates() ([]Candidate, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, observed_at, similar_json, status
		 FROM candidates WHERE status = ? ORDER BY observed_at ASC`,
		string(CandidatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindPendingCandidate looks up a pending candidate by its drive name.
func (s *Store) FindPendingCandidate(name string) (Candidate, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, observed_at, similar_json, status
		 FROM candidates WHERE name = ? AND status = ?`,
		name, string(CandidatePending),
	)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Candidate{}, fmt.Errorf("%w: %s", ErrCandidateNotFound, name)
	}
	return c, err
}

// ResolveCandidate moves a pending candidate to a terminal status.
func (s *Store) ResolveCandidate(id string, status CandidateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE candidates SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(CandidatePending),
	)
	if err != nil {
		return fmt.Errorf("resolve candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve candidate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (Candidate, error) {
	var c Candidate
	var observed, simJSON, status string
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &observed, &simJSON, &status); err != nil {
		return Candidate{}, err
	}
	c.ObservedAt, _ = time.Parse(time.RFC3339Nano, observed)
	c.Status = CandidateStatus(status)
	if err := json.Unmarshal([]byte(simJSON), &c.SimilarTo); err != nil {
		return Candidate{}, fmt.Errorf("unmarshal similarity scores: %w", err)
	}
	return c, nil
}

// Package journal stores observed agent activity and the daily spend
// ledger in SQLite. Activity rows feed the aspect discovery pipeline
// (ingest --recent) and event-driven pressure accumulation; spend rows
// back the budget gate on drive reactivation.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Activity is one observed unit of agent behavior.
type Activity struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // "session", "journal", "observation"
	Content   string    `json:"content"`
}

// SpendEntry is one cost row in the daily ledger.
type SpendEntry struct {
	Day       string    `json:"day"` // YYYY-MM-DD, UTC
	Drive     string    `json:"drive"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages the journal database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewStore creates or opens the journal store.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	if err := s.initCandidateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize candidate schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity(ts);

	CREATE TABLE IF NOT EXISTS spend (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		drive TEXT NOT NULL,
		cost REAL NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_spend_day ON spend(day);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACTIVITY JOURNAL
// =============================================================================

// RecordActivity appends one observed activity row.
func (s *Store) RecordActivity(kind, content string, at time.Time) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Activity{
		ID:        uuid.New().String(),
		Timestamp: at.UTC(),
		Kind:      kind,
		Content:   content,
	}
	_, err := s.db.Exec(
		`INSERT INTO activity (id, ts, kind, content) VALUES (?, ?, ?, ?)`,
		a.ID, a.Timestamp.Format(time.RFC3339Nano), a.Kind, a.Content,
	)
	if err != nil {
		return Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return a, nil
}

// RecentActivity returns activity rows at or after since, newest first,
// capped at limit.
func (s *Store) RecentActivity(since time.Time, limit int) ([]Activity, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, kind, content FROM activity
		 WHERE ts >= ? ORDER BY ts DESC LIMIT ?`,
		since.UTC().Format(time.RFC3339Nano), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var ts string
		if err := rows.Scan(&a.ID, &ts, &a.Kind, &a.Content); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountSessionsSince counts completed-session rows after since. This is
// the event feed for activity-driven drives.
func (s *Store) CountSessionsSince(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM activity WHERE kind = 'session' AND ts > ?`,
		since.UTC().Format(time.RFC3339Nano),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// =============================================================================
// SPEND LEDGER
// =============================================================================

// dayKey buckets a timestamp into a UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordSpend appends one cost row for the day containing at.
func (s *Store) RecordSpend(driveName string, cost float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO spend (day, drive, cost, created_at) VALUES (?, ?, ?, ?)`,
		dayKey(at), driveName, cost, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert spend: %w", err)
	}
	return nil
}

// SpentOn returns the total cost already incurred on the day containing
// at.
func (s *Store) SpentOn(at time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(cost) FROM spend WHERE day = ?`, dayKey(at),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum spend: %w", err)
	}
	return total.Float64, nil
}

// Package spawn hands engagement requests to whatever session runner
// is watching the spool directory. Each request is one JSON file,
// written atomically; the writer never waits for pickup and never
// learns the outcome. The only feedback path is an explicit
// satisfaction call later.
package spawn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vagus/internal/drive"
)

// Request is the wire form of one engagement handoff.
type Request struct {
	ID        string        `json:"id"`
	Drive     string        `json:"drive"`
	Prompt    string        `json:"prompt"`
	Valence   drive.Valence `json:"valence"`
	CreatedAt time.Time     `json:"created_at"`
}

// Spool writes engagement requests into a directory as individual
// JSON files.
type Spool struct {
	dir string
	now func() time.Time
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}
	return &Spool{dir: dir, now: time.Now}, nil
}

// Dir returns the spool directory path.
func (s *Spool) Dir() string { return s.dir }

// Spawn writes one engagement request. The file lands with a temp name
// first so a watcher never reads a half-written document.
func (s *Spool) Spawn(driveName, prompt string, valence drive.Valence) error {
	req := Request{
		ID:        uuid.NewString(),
		Drive:     driveName,
		Prompt:    prompt,
		Valence:   valence,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".vagus-spawn-*.tmp")
	if err != nil {
		return fmt.Errorf("creating spool temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing request: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing spool temp file: %w", err)
	}

	final := filepath.Join(s.dir, req.ID+".json")
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing request: %w", err)
	}
	return nil
}

// Pending lists the spooled requests oldest first. Unreadable files
// are skipped rather than failing the listing; a concurrent writer's
// temp files never match.
func (s *Spool) Pending() ([]Request, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool dir: %w", err)
	}

	var reqs []Request
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

// Claim removes a request by ID, returning whether it was present.
// The consumer claims before running so a crash mid-engagement never
// double-spawns.
func (s *Spool) Claim(id string) (bool, error) {
	err := os.Remove(filepath.Join(s.dir, id+".json"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claiming request: %w", err)
	}
	return true, nil
}

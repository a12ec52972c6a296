// Package registry owns persistence of the drive registry: a single
// small JSON document, loaded and rewritten whole. One writer (the tick
// loop or a CLI invocation) holds the store at a time; external readers
// poll the file and tolerate in-flight rewrites.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vagus/internal/drive"
)

// SchemaVersion is stamped into every saved registry.
const SchemaVersion = 1

// ErrCorruptState is returned when the on-disk registry exists but does
// not parse. The process refuses to run with unknown data rather than
// guessing; nothing is repaired silently.
var ErrCorruptState = errors.New("corrupt state file")

// Store is the single source of truth for the drive registry.
// Every mutation goes through Update: load, mutate, atomic save.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the given state path. The file does not
// need to exist yet; a missing file loads as a freshly seeded registry.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the registry from disk. A missing file is not an error: it
// yields a registry seeded with the built-in core drives at zero
// pressure. Malformed JSON is ErrCorruptState.
func (s *Store) Load() (*drive.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*drive.Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Seed(time.Now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var reg drive.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}

	applyDefaults(&reg)
	return &reg, nil
}

// Save atomically persists the registry: full document to a temp file in
// the same directory, then rename over the canonical path. The on-disk
// file is never left half-written.
func (s *Store) Save(reg *drive.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(reg)
}

func (s *Store) saveLocked(reg *drive.Registry) error {
	reg.Version = SchemaVersion
	RefreshTriggered(reg)

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vagus-state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Update runs one load-mutate-save cycle under the store lock. This is
// the only mutation path; callers never hold a live registry reference
// across ticks. Last writer wins, no merge.
func (s *Store) Update(fn func(reg *drive.Registry) error) (*drive.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if err := fn(reg); err != nil {
		return nil, err
	}
	if err := s.saveLocked(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// RefreshTriggered recomputes the derived triggered_drives cache:
// triggerable drives sitting at triggered-or-above, in stable name order.
func RefreshTriggered(reg *drive.Registry) {
	triggered := make([]string, 0, len(reg.Drives))
	for _, name := range sortedNames(reg.Drives) {
		d := reg.Drives[name]
		if d.Triggerable() && d.Band().AtLeast(drive.BandTriggered) {
			triggered = append(triggered, name)
		}
	}
	reg.TriggeredDrives = triggered
}

package spawn

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vagus/internal/drive"
)

func newTestSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := NewSpool(filepath.Join(t.TempDir(), "spool"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSpool_SpawnAndPending(t *testing.T) {
	t.Parallel()

	s := newTestSpool(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	if err := s.Spawn("CURIOSITY", "drive CURIOSITY", drive.ValenceAppetitive); err != nil {
		t.Fatal(err)
	}
	if err := s.Spawn("CARE", "drive CARE", drive.ValenceAversive); err != nil {
		t.Fatal(err)
	}

	reqs, err := s.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 {
		t.Fatalf("pending = %d, want 2", len(reqs))
	}
	if reqs[0].Drive != "CURIOSITY" || reqs[1].Drive != "CARE" {
		t.Errorf("order = %s, %s; want oldest first", reqs[0].Drive, reqs[1].Drive)
	}
	if reqs[1].Valence != drive.ValenceAversive {
		t.Errorf("valence = %s, want aversive", reqs[1].Valence)
	}
	if reqs[0].ID == "" || reqs[0].ID == reqs[1].ID {
		t.Errorf("ids not unique: %q, %q", reqs[0].ID, reqs[1].ID)
	}
}

func TestSpool_NoTempFilesLeftBehind(t *testing.T) {
	t.Parallel()

	s := newTestSpool(t)
	if err := s.Spawn("REST", "drive REST", drive.ValenceNeutral); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			t.Errorf("stray file in spool: %s", e.Name())
		}
	}
}

func TestSpool_Claim(t *testing.T) {
	t.Parallel()

	s := newTestSpool(t)
	if err := s.Spawn("CURIOSITY", "drive CURIOSITY", drive.ValenceAppetitive); err != nil {
		t.Fatal(err)
	}
	reqs, err := s.Pending()
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.Claim(reqs[0].ID)
	if err != nil || !ok {
		t.Fatalf("claim = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Claim(reqs[0].ID)
	if err != nil || ok {
		t.Fatalf("second claim = %v, %v; want false, nil", ok, err)
	}

	reqs, err = s.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 0 {
		t.Errorf("pending = %d after claim, want 0", len(reqs))
	}
}

func TestSpool_PendingSkipsGarbage(t *testing.T) {
	t.Parallel()

	s := newTestSpool(t)
	if err := s.Spawn("CURIOSITY", "drive CURIOSITY", drive.ValenceAppetitive); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "junk.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	reqs, err := s.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 {
		t.Errorf("pending = %d, want garbage skipped", len(reqs))
	}
}

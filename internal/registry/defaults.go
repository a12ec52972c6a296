package registry

import (
	"sort"
	"time"

	"vagus/internal/drive"
)

// coreDrives are the built-in drive set, seeded at zero pressure when no
// state file exists yet. Discovered drives join them at runtime; drives
// are never hard-deleted, only consolidated to latent.
func coreDrives() []*drive.Drive {
	return []*drive.Drive{
		{
			Name:        "CURIOSITY",
			Description: "Explore something new: an unread thread, an unfamiliar idea, a question left open.",
			Threshold:   20,
			RatePerHour: 2,
		},
		{
			Name:        "CARE",
			Description: "Tend to ongoing relationships and commitments; check on things left unattended.",
			Threshold:   20,
			RatePerHour: 1.5,
		},
		{
			Name:        "REST",
			Description: "Consolidate instead of produce: review the journal, digest, let things settle.",
			Threshold:   16,
			RatePerHour: 1,
		},
		{
			Name:        "EXPRESSION",
			Description: "Make something outward-facing: write, publish, shape a thought into an artifact.",
			Threshold:   24,
			RatePerHour: 1.5,
		},
		{
			Name:           "ACCOMPLISHMENT",
			Description:    "Finish what was started; pressure builds from completed work sessions, not time.",
			Threshold:      20,
			RatePerHour:    2,
			ActivityDriven: true,
		},
	}
}

// Seed builds a fresh registry with the core drive set at zero pressure.
func Seed(now time.Time) *drive.Registry {
	reg := &drive.Registry{
		Drives:   make(map[string]*drive.Drive),
		LastTick: now,
		Version:  SchemaVersion,
	}
	for _, d := range coreDrives() {
		d.Valence = drive.ValenceNeutral
		d.Status = drive.StatusActive
		d.Category = drive.CategoryCore
		d.SatisfactionEvents = []drive.SatisfactionEvent{}
		reg.Drives[d.Name] = d
	}
	RefreshTriggered(reg)
	return reg
}

// applyDefaults fills fields absent from an on-disk record so older
// state files keep loading as the schema grows. This is the one place
// schema evolution is handled; business logic never checks for missing
// fields.
func applyDefaults(reg *drive.Registry) {
	if reg.Drives == nil {
		reg.Drives = make(map[string]*drive.Drive)
	}
	if reg.Version == 0 {
		reg.Version = SchemaVersion
	}
	for name, d := range reg.Drives {
		if d.Name == "" {
			d.Name = name
		}
		if d.Status == "" {
			d.Status = drive.StatusActive
		}
		if d.Valence == "" {
			d.Valence = drive.ValenceNeutral
		}
		if d.SatisfactionEvents == nil {
			d.SatisfactionEvents = []drive.SatisfactionEvent{}
		}
		if d.Category == "" {
			d.Category = drive.CategoryCore
		}
	}
}

func sortedNames(drives map[string]*drive.Drive) []string {
	names := make([]string, 0, len(drives))
	for name := range drives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

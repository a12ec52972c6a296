package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"vagus/internal/aspect"
	"vagus/internal/drive"
	"vagus/internal/mode"
)

// statusCmd shows the full drive registry at a glance
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show all drives, bands and gating state",
	Long: `Prints every drive with its pressure, band, valence and thwarting
count, plus the cooldown window, today's reactivation budget and any
pending discovery candidates.

Example:
  vagus status
  vagus status --json`,
	RunE: runStatus,
}

// showCmd prints one drive in full detail
var showCmd = &cobra.Command{
	Use:   "show [drive]",
	Short: "Show one drive including its satisfaction history",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
}

type driveStatus struct {
	Name      string        `json:"name"`
	Pressure  float64       `json:"pressure"`
	Threshold float64       `json:"threshold"`
	Band      drive.Band    `json:"band"`
	Valence   drive.Valence `json:"valence"`
	Thwarting int           `json:"thwarting_count"`
	Status    drive.Status  `json:"status"`
	AspectOf  string        `json:"aspect_of,omitempty"`
}

type statusReport struct {
	Mode              mode.Mode                 `json:"mode"`
	Drives            []driveStatus             `json:"drives"`
	Triggered         []string                  `json:"triggered"`
	CooldownRemaining string                    `json:"cooldown_remaining,omitempty"`
	Budget            aspect.BudgetStatus       `json:"budget"`
	PendingCandidates int                       `json:"pending_candidates"`
	Advisories        []drive.ThresholdAdvisory `json:"advisories,omitempty"`
	LastTick          time.Time                 `json:"last_tick,omitzero"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.store.Load()
	if err != nil {
		return err
	}

	report := statusReport{
		Mode:      a.controller.Mode(),
		Triggered: reg.TriggeredDrives,
		LastTick:  reg.LastTick,
	}

	names := make([]string, 0, len(reg.Drives))
	for name := range reg.Drives {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := reg.Drives[name]
		report.Drives = append(report.Drives, driveStatus{
			Name:      d.Name,
			Pressure:  d.Pressure,
			Threshold: d.Threshold,
			Band:      d.Band(),
			Valence:   d.Valence,
			Thwarting: d.ThwartingCount,
			Status:    d.Status,
			AspectOf:  d.AspectOf,
		})
		if adv := drive.AdviseThreshold(d); adv != nil && d.Status == drive.StatusActive {
			report.Advisories = append(report.Advisories, *adv)
		}
	}

	if remaining := a.controller.CooldownRemaining(reg, time.Now().UTC()); remaining > 0 {
		report.CooldownRemaining = remaining.Round(time.Second).String()
	}

	if report.Budget, err = a.manager.BudgetStatus(time.Now().UTC()); err != nil {
		return err
	}
	pending, err := a.journal.PendingCandidates()
	if err != nil {
		return err
	}
	report.PendingCandidates = len(pending)

	if jsonOut {
		return printJSON(report)
	}

	fmt.Printf("mode: %s\n", report.Mode)
	if !report.LastTick.IsZero() {
		fmt.Printf("last tick: %s\n", report.LastTick.Format(time.RFC3339))
	}
	fmt.Println()
	for _, d := range report.Drives {
		marker := " "
		if d.Band.AtLeast(drive.BandTriggered) && d.Status == drive.StatusActive {
			marker = "*"
		}
		label := d.Name
		if d.Status == drive.StatusLatent {
			label = fmt.Sprintf("%s (latent of %s)", d.Name, d.AspectOf)
		}
		fmt.Printf("%s %-32s %6.1f/%-6.1f %-10s %-11s thwarted %d\n",
			marker, label, d.Pressure, d.Threshold, d.Band, d.Valence, d.Thwarting)
	}
	fmt.Println()
	if report.CooldownRemaining != "" {
		fmt.Printf("cooldown: %s remaining\n", report.CooldownRemaining)
	}
	fmt.Printf("budget: %.2f spent of %.2f today\n", report.Budget.Spent, report.Budget.Limit)
	if report.PendingCandidates > 0 {
		fmt.Printf("pending candidates: %d (see 'vagus candidates')\n", report.PendingCandidates)
	}
	for _, adv := range report.Advisories {
		fmt.Printf("advisory: %s thwarted %d times; consider raising its threshold for %s-%s\n",
			adv.Drive, adv.ThwartingCount, adv.SuggestedMin, adv.SuggestedMax)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.store.Load()
	if err != nil {
		return err
	}
	d, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(d)
	}

	fmt.Printf("%s  [%s, %s]\n", d.Name, d.Status, d.Category)
	fmt.Printf("  %s\n", d.Description)
	fmt.Printf("  pressure %.2f / threshold %.2f  (%s, %s)\n", d.Pressure, d.Threshold, d.Band(), d.Valence)
	if d.ActivityDriven {
		fmt.Printf("  accumulates %.2f per session\n", d.RatePerHour)
	} else {
		fmt.Printf("  accumulates %.2f per hour\n", d.RatePerHour)
	}
	if d.ThwartingCount > 0 {
		fmt.Printf("  thwarted %d times, last triggered %s\n", d.ThwartingCount, d.LastTriggered.Format(time.RFC3339))
	}
	if len(d.Aspects) > 0 {
		fmt.Printf("  aspects: %v\n", d.Aspects)
	}
	if d.Status == drive.StatusLatent {
		fmt.Printf("  consolidated %s under %s, %d satisfactions, contribution %.2f\n",
			d.ConsolidatedAt.Format("2006-01-02"), d.AspectOf, d.SatisfactionCount, d.PressureContribution7)
		if aspect.ReadyToGraduate(d, time.Now().UTC()) {
			fmt.Println("  ready to graduate (use 'vagus activate' or 'vagus keep-latent')")
		}
	}
	if len(d.SatisfactionEvents) > 0 {
		fmt.Println("  recent satisfactions:")
		for _, ev := range d.SatisfactionEvents {
			fmt.Printf("    %s  %-12s %6.2f -> %-6.2f (%s)\n",
				ev.Timestamp.Format("2006-01-02 15:04"), ev.Depth, ev.PressureBefore, ev.PressureAfter, ev.Source)
		}
	}
	return nil
}

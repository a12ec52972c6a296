package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vagus/internal/aspect"
	"vagus/internal/drive"
	"vagus/internal/journal"
)

var (
	ingestRecent time.Duration
	ingestStdin  bool
)

// discoverCmd proposes a new drive by name and description
var discoverCmd = &cobra.Command{
	Use:   "discover [name] [description...]",
	Short: "Propose a new drive for the registry",
	Long: `Embeds the description and compares it against the existing drive
set. A close match is queued as a pending candidate for review;
a novel description activates immediately as a discovered drive.

Example:
  vagus discover SKETCHING "capture ideas as quick diagrams before writing"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDiscover,
}

// ingestCmd scans recent journal activity for recurring themes
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Derive a drive candidate from recent journal activity",
	Long: `Scans the activity journal (or lines piped on stdin) for a
recurring theme and routes it through discovery, as if it had been
proposed by hand.

Example:
  vagus ingest --recent 72h
  cat notes.txt | vagus ingest --stdin`,
	RunE: runIngest,
}

// candidatesCmd lists the pending review queue
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List drive candidates awaiting review",
	RunE:  runCandidates,
}

// consolidateCmd folds a candidate into an existing drive
var consolidateCmd = &cobra.Command{
	Use:   "consolidate [candidate] [parent]",
	Short: "Consolidate a pending candidate as a latent aspect of a drive",
	Args:  cobra.ExactArgs(2),
	RunE:  runConsolidate,
}

// dismissCmd rejects a pending candidate
var dismissCmd = &cobra.Command{
	Use:   "dismiss [candidate]",
	Short: "Dismiss a pending drive candidate",
	Args:  cobra.ExactArgs(1),
	RunE:  runDismiss,
}

// aspectsCmd lists latent aspects and graduation state
var aspectsCmd = &cobra.Command{
	Use:   "aspects [drive]",
	Short: "List latent aspects, optionally under one parent drive",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAspects,
}

// activateCmd reactivates a latent aspect, budget permitting
var activateCmd = &cobra.Command{
	Use:   "activate [drive]",
	Short: "Reactivate a latent aspect as an independent drive",
	Long: `Promotes a latent aspect back to active status. Refused when
today's spend plus one activation would exceed the daily budget.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivate,
}

// keepLatentCmd declines a graduation suggestion
var keepLatentCmd = &cobra.Command{
	Use:   "keep-latent [drive]",
	Short: "Keep a graduation-ready aspect latent",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeepLatent,
}

func init() {
	ingestCmd.Flags().DurationVar(&ingestRecent, "recent", 72*time.Hour, "Activity window to scan")
	ingestCmd.Flags().BoolVar(&ingestStdin, "stdin", false, "Read activity lines from stdin instead of the journal")
	candidatesCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	aspectsCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(aspectsCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(keepLatentCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.ToUpper(args[0])
	description := strings.Join(args[1:], " ")

	cand, err := a.manager.Discover(context.Background(), name, description, time.Now().UTC())
	if err != nil {
		return err
	}
	reportCandidate(cand)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var activities []journal.Activity
	if ingestStdin {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			activities = append(activities, journal.Activity{
				Timestamp: time.Now().UTC(),
				Kind:      "journal",
				Content:   line,
			})
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		if activities, err = a.journal.RecentActivity(time.Now().UTC().Add(-ingestRecent), 200); err != nil {
			return err
		}
	}
	name, description, ok := aspect.DeriveCandidate(activities)
	if !ok {
		fmt.Println("no recurring theme in the window; nothing to propose")
		return nil
	}

	cand, err := a.manager.Discover(context.Background(), name, description, time.Now().UTC())
	if err != nil {
		return err
	}
	reportCandidate(cand)
	return nil
}

func reportCandidate(cand journal.Candidate) {
	switch cand.Status {
	case journal.CandidateActivated:
		fmt.Printf("%s activated as a discovered drive\n", cand.Name)
	default:
		fmt.Printf("%s queued for review", cand.Name)
		if len(cand.SimilarTo) > 0 {
			top := cand.SimilarTo[0]
			fmt.Printf(" (%.0f%% similar to %s)", top.Score*100, top.Drive)
		}
		fmt.Println()
		fmt.Printf("  consolidate: vagus consolidate %s <parent>\n", cand.Name)
		fmt.Printf("  dismiss:     vagus dismiss %s\n", cand.Name)
	}
}

func runCandidates(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.journal.PendingCandidates()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(pending)
	}
	if len(pending) == 0 {
		fmt.Println("no pending candidates")
		return nil
	}
	for _, c := range pending {
		fmt.Printf("%-24s observed %s\n", c.Name, c.ObservedAt.Format("2006-01-02 15:04"))
		fmt.Printf("  %s\n", c.Description)
		for _, s := range c.SimilarTo {
			fmt.Printf("  %-24s %.0f%%\n", s.Drive, s.Score*100)
		}
	}
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	candidate, parent := strings.ToUpper(args[0]), strings.ToUpper(args[1])
	if err := a.manager.Consolidate(candidate, parent, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Printf("%s consolidated as a latent aspect of %s\n", candidate, parent)
	return nil
}

func runDismiss(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.ToUpper(args[0])
	if err := a.manager.DismissCandidate(name); err != nil {
		return err
	}
	fmt.Printf("%s dismissed\n", name)
	return nil
}

func runAspects(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.store.Load()
	if err != nil {
		return err
	}

	var parent string
	if len(args) == 1 {
		parent = strings.ToUpper(args[0])
		if _, err := reg.Get(parent); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	ready := make(map[string]bool)
	for _, gc := range aspect.GraduationCandidates(reg, now) {
		ready[gc.Name] = true
	}

	var names []string
	for name, d := range reg.Drives {
		if d.Status != drive.StatusLatent {
			continue
		}
		if parent != "" && d.AspectOf != parent {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if jsonOut {
		out := make([]*drive.Drive, 0, len(names))
		for _, name := range names {
			out = append(out, reg.Drives[name])
		}
		return printJSON(out)
	}

	if len(names) == 0 {
		fmt.Println("no latent aspects")
		return nil
	}
	for _, name := range names {
		d := reg.Drives[name]
		flag := ""
		if ready[name] {
			flag = "  READY TO GRADUATE"
		}
		fmt.Printf("%-24s under %-16s %d satisfactions, contribution %.2f, since %s%s\n",
			d.Name, d.AspectOf, d.SatisfactionCount, d.PressureContribution7,
			d.ConsolidatedAt.Format("2006-01-02"), flag)
	}
	return nil
}

func runActivate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.ToUpper(args[0])
	if err := a.manager.Reactivate(name, time.Now().UTC()); err != nil {
		return err
	}
	status, err := a.manager.BudgetStatus(time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("%s reactivated (%.2f of %.2f spent today)\n", name, status.Spent, status.Limit)
	return nil
}

func runKeepLatent(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.ToUpper(args[0])
	if err := a.manager.KeepLatent(name); err != nil {
		return err
	}
	fmt.Printf("%s stays latent; graduation counters reset\n", name)
	return nil
}

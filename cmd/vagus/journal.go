package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vagus/internal/config"
)

var logKind string

// logCmd appends one activity record to the journal
var logCmd = &cobra.Command{
	Use:   "log [content...]",
	Short: "Record an activity in the journal",
	Long: `Appends one activity record. Session records feed activity-driven
drives on the next tick; journal records feed candidate discovery.

Example:
  vagus log --kind session "refactored the import planner"
  vagus log "spent the evening sketching interface ideas"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

// engagementsCmd lists spooled engagement requests
var engagementsCmd = &cobra.Command{
	Use:   "engagements",
	Short: "List spooled engagement requests",
	RunE:  runEngagements,
}

// claimCmd removes an engagement request from the spool
var claimCmd = &cobra.Command{
	Use:   "claim [id]",
	Short: "Claim a spooled engagement request before running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runInit,
}

func init() {
	logCmd.Flags().StringVar(&logKind, "kind", "journal", "Record kind: session, journal or observation")
	engagementsCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(engagementsCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(initCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	switch logKind {
	case "session", "journal", "observation":
	default:
		return fmt.Errorf("unknown kind %q (session, journal, observation)", logKind)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.journal.RecordActivity(logKind, strings.Join(args, " "), time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s %s\n", rec.Kind, rec.ID)
	return nil
}

func runEngagements(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reqs, err := a.spool.Pending()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(reqs)
	}
	if len(reqs) == 0 {
		fmt.Println("no pending engagements")
		return nil
	}
	for _, r := range reqs {
		fmt.Printf("%s  %-24s %-11s %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Drive, r.Valence, r.ID)
	}
	return nil
}

func runClaim(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.spool.Claim(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no spooled request %s", args[0])
	}
	fmt.Printf("claimed %s\n", args[0])
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", configPath)
	return nil
}

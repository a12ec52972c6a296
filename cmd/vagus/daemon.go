package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vagus/internal/drive"
	"vagus/internal/registry"
)

// tickCmd runs a single update pass
var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one update pass and exit",
	Long: `Accumulates pressure for the time elapsed since the last tick,
updates thwarting and valence, refreshes the triggered set and runs
the mode controller once. Suitable for cron when the daemon is not
running.`,
	RunE: runTickOnce,
}

// runCmd runs the tick loop until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tick loop as a foreground daemon",
	RunE:  runDaemon,
}

// watchCmd follows the state file and reports band changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the state file and print drive changes as they land",
	RunE:  runWatch,
}

func init() {
	tickCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

func runTickOnce(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.ticker.Tick(time.Now().UTC())
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(report)
	}
	fmt.Printf("tick: %.2fh elapsed, %d sessions\n", report.Hours, report.Sessions)
	if len(report.Triggered) == 0 {
		fmt.Println("nothing triggered")
	}
	for _, dec := range report.Decisions {
		fmt.Printf("%-24s %-10s %-11s %s\n", dec.Drive, dec.Band, dec.Valence, dec.Action)
	}
	for _, adv := range report.Advisories {
		fmt.Printf("advisory: %s thwarted %d times\n", adv.Drive, adv.ThwartingCount)
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("vagus daemon starting",
		zap.String("state", a.cfg.StatePath),
		zap.Duration("interval", a.cfg.TickIntervalDuration()),
		zap.String("mode", string(a.controller.Mode())))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.ticker.Run(ctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("vagus daemon stopped")
		return nil
	}
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	// The store writes by rename, so watch the directory and filter for
	// the state file landing.
	stateDir := filepath.Dir(a.cfg.StatePath)
	stateName := filepath.Base(a.cfg.StatePath)
	if err := watcher.Add(stateDir); err != nil {
		return fmt.Errorf("watching %s: %w", stateDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBands(a.store)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != stateName {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			printBands(a.store)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

// printBands loads and prints a compact band summary. A load failure is
// tolerated: the event may have fired mid-rename, and the next write
// will follow shortly.
func printBands(store *registry.Store) {
	reg, err := store.Load()
	if err != nil {
		logger.Debug("state not readable yet", zap.Error(err))
		return
	}

	names := make([]string, 0, len(reg.Drives))
	for name, d := range reg.Drives {
		if d.Status == drive.StatusActive {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Printf("%s ", time.Now().Format("15:04:05"))
	for i, name := range names {
		if i > 0 {
			fmt.Print("  ")
		}
		d := reg.Drives[name]
		fmt.Printf("%s=%s", name, d.Band())
	}
	fmt.Println()
}

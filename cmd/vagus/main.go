package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vagus/internal/aspect"
	"vagus/internal/config"
	"vagus/internal/embedding"
	"vagus/internal/journal"
	"vagus/internal/mode"
	"vagus/internal/registry"
	"vagus/internal/spawn"
	"vagus/internal/tick"
)

var (
	// Global flags
	verbose    bool
	configPath string
	jsonOut    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vagus",
	Short: "vagus - interoceptive drive layer for long-running agents",
	Long: `vagus maintains a registry of motivational drives that accumulate
pressure over time, classifies each one into a graduated urgency band,
and decides when the agent should act on them.

Pressure rises continuously (or per activity event), satisfaction
reduces it proportionally to engagement depth, and repeated triggering
without resolution shifts a drive from appetitive to aversive. New
drives are discovered from journal activity and consolidated into
latent aspects of existing ones when they overlap.

State lives in a single JSON document; the activity journal, spend
ledger and discovery queue live in SQLite alongside it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// app bundles the wired components a command needs. Commands open only
// what they use; Close is safe on a partially opened app.
type app struct {
	cfg        *config.Config
	store      *registry.Store
	journal    *journal.Store
	spool      *spawn.Spool
	controller *mode.Controller
	manager    *aspect.Manager
	ticker     *tick.Ticker
}

// openApp wires every component from configuration.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.store = registry.NewStore(cfg.StatePath)

	a.journal, err = journal.NewStore(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	a.spool, err = spawn.NewSpool(cfg.SpoolDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	start, end, quietOn := cfg.QuietWindow()
	a.controller = mode.NewController(mode.Config{
		Mode:       mode.ParseMode(cfg.Mode),
		Cooldown:   cfg.CooldownDuration(),
		QuietStart: start,
		QuietEnd:   end,
		QuietOn:    quietOn,
	}, a.spool, logger)

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	a.manager = aspect.NewManager(a.store, a.journal, engine,
		cfg.Aspects.SimilarityThreshold,
		aspect.Budget{
			DailyLimit:     cfg.Aspects.DailyBudget,
			ActivationCost: cfg.Aspects.ActivationCost,
		}, logger)

	a.ticker = tick.NewTicker(a.store, a.journal, a.controller,
		cfg.TickIntervalDuration(), cfg.RearmPeriodDuration(), logger)
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".vagus/vagus.yaml", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

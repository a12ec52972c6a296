package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vagus/internal/drive"
	"vagus/internal/mode"
	"vagus/internal/registry"
)

var resolveDepth string

// satisfyCmd applies a manual satisfaction event
var satisfyCmd = &cobra.Command{
	Use:   "satisfy [drive] [depth]",
	Short: "Record a satisfaction event against a drive",
	Long: `Reduces a drive's pressure in proportion to the depth of engagement.

Appetitive depths: shallow (25%), moderate (50%), deep (75%).
Aversive depths:   investigate (0%), alternative (35%), deep (75%, resets thwarting).
Omitting the depth uses auto, which follows the drive's current band.

Example:
  vagus satisfy CURIOSITY deep
  vagus satisfy REST`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSatisfy,
}

// resolveCmd answers a CHOICE-mode trigger
var resolveCmd = &cobra.Command{
	Use:   "resolve [drive] [recognize|engage|defer]",
	Short: "Resolve a triggered drive in choice mode",
	Long: `Applies one of the three choice-mode resolutions:

  recognize  the drive is already being met by ongoing activity;
             an auto-depth satisfaction is recorded
  engage     satisfy now at the depth given by --depth (default auto)
  defer      leave the drive for the next tick

Example:
  vagus resolve CURIOSITY engage --depth deep
  vagus resolve REST defer`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	satisfyCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	resolveCmd.Flags().StringVar(&resolveDepth, "depth", "", "Engagement depth for engage")
	resolveCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(satisfyCmd)
	rootCmd.AddCommand(resolveCmd)
}

func parseDepth(s string) (drive.Depth, error) {
	switch drive.Depth(s) {
	case drive.DepthShallow, drive.DepthModerate, drive.DepthDeep,
		drive.DepthInvestigate, drive.DepthAlternative, drive.DepthAuto:
		return drive.Depth(s), nil
	case "":
		return drive.DepthAuto, nil
	default:
		return "", fmt.Errorf("unknown depth %q (shallow, moderate, deep, investigate, alternative, auto)", s)
	}
}

func runSatisfy(cmd *cobra.Command, args []string) error {
	depth := drive.DepthAuto
	if len(args) == 2 {
		var err error
		if depth, err = parseDepth(args[1]); err != nil {
			return err
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var result drive.Result
	_, err = a.store.Update(func(reg *drive.Registry) error {
		d, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		result, err = drive.Satisfy(d, depth, drive.SourceManual, time.Now().UTC())
		if err != nil {
			return err
		}
		registry.RefreshTriggered(reg)
		return nil
	})
	if err != nil {
		return err
	}

	return printSatisfaction(result)
}

func runResolve(cmd *cobra.Command, args []string) error {
	res := mode.Resolution(args[1])
	depth, err := parseDepth(resolveDepth)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var result *drive.Result
	_, err = a.store.Update(func(reg *drive.Registry) error {
		result, err = a.controller.Resolve(reg, args[0], res, depth, time.Now().UTC())
		if err != nil {
			return err
		}
		registry.RefreshTriggered(reg)
		return nil
	})
	if err != nil {
		return err
	}

	if result == nil {
		fmt.Printf("%s deferred\n", args[0])
		return nil
	}
	return printSatisfaction(*result)
}

func printSatisfaction(result drive.Result) error {
	if jsonOut {
		return printJSON(result)
	}
	fmt.Printf("%s: %s satisfaction, pressure %.2f -> %.2f (%s -> %s)\n",
		result.Drive, result.Depth, result.PressureBefore, result.PressureAfter,
		result.BandBefore, result.BandAfter)
	if result.ResetThwarting {
		fmt.Println("thwarting count reset")
	}
	if result.Advisory != nil {
		fmt.Printf("advisory: %s\n", result.Advisory.Reason)
	}
	return nil
}

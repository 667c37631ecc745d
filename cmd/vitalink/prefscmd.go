package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jromeu/vitalink/internal/config"
	"github.com/jromeu/vitalink/internal/prefs"
)

// prefsCmd represents the prefs command
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change user preferences",
	RunE:  runPrefsShow,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change preference values",
	Long: `Change preference values. Only the flags you pass are changed.

Examples:
  vitalink prefs set --step-goal 12000
  vitalink prefs set --theme dark --alert-threshold 130`,
	RunE: runPrefsSet,
}

var (
	prefStepGoal       int
	prefTheme          string
	prefUnit           string
	prefAlertThreshold int
	prefRestingTarget  int
)

func init() {
	prefsSetCmd.Flags().IntVar(&prefStepGoal, "step-goal", 0, "Daily step goal")
	prefsSetCmd.Flags().StringVar(&prefTheme, "theme", "", "UI theme (light, dark)")
	prefsSetCmd.Flags().StringVar(&prefUnit, "unit", "", "Measurement unit (metric, imperial)")
	prefsSetCmd.Flags().IntVar(&prefAlertThreshold, "alert-threshold", 0, "Heart-rate alert threshold (bpm)")
	prefsSetCmd.Flags().IntVar(&prefRestingTarget, "resting-target", 0, "Resting heart-rate target (bpm)")

	prefsCmd.AddCommand(prefsSetCmd)
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	store := prefs.NewStore(cfg.PrefsPath, logger)
	raw, err := yaml.Marshal(store.Get())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(raw))
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}

	if prefStepGoal < 0 || prefAlertThreshold < 0 || prefRestingTarget < 0 {
		return fmt.Errorf("preference values must be non-negative")
	}
	if cmd.Flags().NFlag() == 0 {
		return fmt.Errorf("nothing to change, pass at least one flag")
	}

	cmd.SilenceUsage = true

	store := prefs.NewStore(cfg.PrefsPath, logger)
	updated, err := store.Update(func(p *prefs.Preferences) {
		if cmd.Flags().Changed("step-goal") {
			p.DailyStepGoal = prefStepGoal
		}
		if cmd.Flags().Changed("theme") {
			p.Theme = prefTheme
		}
		if cmd.Flags().Changed("unit") {
			p.MeasurementUnit = prefUnit
		}
		if cmd.Flags().Changed("alert-threshold") {
			p.HeartRate.AlertThreshold = prefAlertThreshold
		}
		if cmd.Flags().Changed("resting-target") {
			p.HeartRate.RestingTarget = prefRestingTarget
		}
	})
	if err != nil {
		return err
	}

	raw, err := yaml.Marshal(updated)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(raw))
	return nil
}

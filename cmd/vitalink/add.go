package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jromeu/vitalink/internal/config"
	"github.com/jromeu/vitalink/internal/record"
)

// addCmd groups the manual-entry commands
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a reading manually",
}

var addHeartCmd = &cobra.Command{
	Use:   "heart <bpm>",
	Short: "Record a heart-rate reading",
	Long: `Record a heart-rate reading.

Examples:
  vitalink add heart 72
  vitalink add heart 135 --activity ejercicio --notes "interval session"`,
	Args: cobra.ExactArgs(1),
	RunE: runAddHeart,
}

var addStepsCmd = &cobra.Command{
	Use:   "steps <count>",
	Short: "Record a step-count delta",
	Long: `Record a step-count delta. Deltas accumulate into the record for
the given date (today by default); there is at most one steps record per
calendar date.

Examples:
  vitalink add steps 2500
  vitalink add steps 4000 --distance 3.1 --calories 180`,
	Args: cobra.ExactArgs(1),
	RunE: runAddSteps,
}

var (
	addActivity string
	addNotes    string
	addAt       string
	addDate     string
	addDistance float64
	addCalories float64
)

func init() {
	addHeartCmd.Flags().StringVar(&addActivity, "activity", "", "Activity tag (reposo, ejercicio, trabajo, sueno, otro)")
	addHeartCmd.Flags().StringVar(&addNotes, "notes", "", "Free-text note")
	addHeartCmd.Flags().StringVar(&addAt, "at", "", "Timestamp (RFC 3339, default now)")

	addStepsCmd.Flags().StringVar(&addDate, "date", "", "Calendar date (YYYY-MM-DD, default today)")
	addStepsCmd.Flags().Float64Var(&addDistance, "distance", 0, "Distance in kilometers")
	addStepsCmd.Flags().Float64Var(&addCalories, "calories", 0, "Calories burned")

	addCmd.AddCommand(addHeartCmd)
	addCmd.AddCommand(addStepsCmd)
}

func runAddHeart(cmd *cobra.Command, args []string) error {
	bpm, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid bpm %q: %w", args[0], err)
	}
	if !record.ValidBPM(bpm) {
		return fmt.Errorf("bpm %d outside valid range %d-%d", bpm, record.MinBPM, record.MaxBPM)
	}
	if addAt != "" {
		if _, err := time.Parse(time.RFC3339, addAt); err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
	}

	cfg := config.Load()
	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	reading := record.NewHeartRate(bpm, record.ParseActivity(addActivity), time.Now())
	reading.Notes = addNotes
	if addAt != "" {
		reading.Timestamp = addAt
	}

	gw := newGateway(cfg, logger)
	stored := gw.Create(context.Background(), record.KindHeartRate, reading)
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded heart reading %s: bpm=%d activity=%s\n", stored.ID, stored.BPM, stored.Activity)
	return nil
}

func runAddSteps(cmd *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", args[0], err)
	}
	if count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	if addDistance < 0 || addCalories < 0 {
		return fmt.Errorf("distance and calories must be non-negative")
	}
	if addDate != "" {
		if _, err := time.Parse(record.DateLayout, addDate); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	cfg := config.Load()
	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	reading := record.NewSteps(count, time.Now())
	if addDate != "" {
		reading.Date = addDate
	}
	if cmd.Flags().Changed("distance") {
		reading.Distance = record.Float64Ptr(addDistance)
	}
	if cmd.Flags().Changed("calories") {
		reading.Calories = record.Float64Ptr(addCalories)
	}

	gw := newGateway(cfg, logger)
	stored, err := gw.UpsertStepsForToday(context.Background(), reading)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Steps for %s: count=%d\n", stored.Date, stored.Count)
	return nil
}

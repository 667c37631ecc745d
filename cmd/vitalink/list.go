package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jromeu/vitalink/internal/config"
	"github.com/jromeu/vitalink/internal/record"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <heart|steps>",
	Short: "List stored readings",
	Long: `List stored readings for one entity kind.

The sort spec is a field name, optionally prefixed with '-' for descending
order. Heart readings default to -timestamp, steps to -date.

Examples:
  vitalink list heart
  vitalink list steps --sort count
  vitalink list heart --sort -bpm --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var (
	listSort   string
	listFormat string
)

func init() {
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort spec (field name, '-' prefix for descending)")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	if listFormat != "table" && listFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", listFormat)
	}

	kind, err := record.ParseKind(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	sort := listSort
	if sort == "" {
		if kind == record.KindSteps {
			sort = "-date"
		} else {
			sort = "-timestamp"
		}
	}

	gw := newGateway(cfg, logger)
	items := gw.List(context.Background(), kind, sort)

	if listFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	return displayReadingsTable(cmd.OutOrStdout(), kind, items)
}

func displayReadingsTable(out io.Writer, kind record.Kind, items []record.Reading) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "No readings stored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	switch kind {
	case record.KindHeartRate:
		fmt.Fprintln(w, "TIMESTAMP\tBPM\tACTIVITY\tNOTES")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, r := range items {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Timestamp, r.BPM, r.Activity, r.Notes)
		}
	case record.KindSteps:
		fmt.Fprintln(w, "DATE\tCOUNT\tDISTANCE\tCALORIES")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, r := range items {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Date, r.Count, optionalFloat(r.Distance, "km"), optionalFloat(r.Calories, "kcal"))
		}
	}
	return w.Flush()
}

func optionalFloat(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", *v, unit)
}

// Command syncctl inspects a sync log file offline.
//
//	syncctl [-file path] [-driver json|jsonl] [-tz Zone] summary [-from X] [-to Y]
//	syncctl [-file path] [-driver json|jsonl] ledger [-ids]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/PratikDhanave/audit-sync-monitor/internal/config"
	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
	"github.com/PratikDhanave/audit-sync-monitor/internal/metrics"
	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("syncctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", config.DefaultDataFile, "sync log file")
	driver := fs.String("driver", store.DriverJSON, "file layout: json or jsonl")
	tz := fs.String("tz", "", "IANA zone for peak hours (default local)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: summary or ledger")
	}
	if *driver != store.DriverJSON && *driver != store.DriverJSONL {
		return fmt.Errorf("driver %q is not a file layout", *driver)
	}

	loc := time.Local
	if *tz != "" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			return err
		}
		loc = l
	}

	// Read-only: the file may belong to a running service.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	entries, err := store.ReadFile(*file, *driver, logger)
	if err != nil {
		return err
	}

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "summary":
		return runSummary(entries, loc, rest, stdout, stderr)
	case "ledger":
		return runLedger(entries, rest, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSummary(entries []models.SyncEntry, loc *time.Location, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fromArg := fs.String("from", "", "inclusive lower bound (RFC3339 or YYYY-MM-DD)")
	toArg := fs.String("to", "", "inclusive upper bound (RFC3339 or YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	from, err := metrics.ParseBound(*fromArg, loc, false)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	to, err := metrics.ParseBound(*toArg, loc, true)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	if from != nil || to != nil {
		entries = metrics.FilterRange(entries, from, to)
	}
	printSummary(stdout, metrics.Summarize(entries, loc))
	return nil
}

func printSummary(w io.Writer, s models.Summary) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	title.Fprintln(w, "Sync summary")
	label.Fprint(w, "  entries:          ")
	fmt.Fprintln(w, s.TotalEntries)
	label.Fprint(w, "  processed items:  ")
	fmt.Fprintln(w, s.TotalProcessedItems)
	label.Fprint(w, "  unique operators: ")
	fmt.Fprintln(w, s.UniqueOperatorCount)
	label.Fprint(w, "  avg interval:     ")
	fmt.Fprintf(w, "%ds\n", s.AverageInterArrivalSeconds)

	title.Fprintln(w, "By status")
	for _, st := range models.AllStatuses() {
		n := s.StatusBreakdown[st]
		c := color.New(color.FgGreen)
		if st == models.StatusFailed && n > 0 {
			c = color.New(color.FgRed)
		}
		c.Fprintf(w, "  %-14s %d\n", st, n)
	}

	title.Fprintln(w, "Peak hours")
	if len(s.PeakHours) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, p := range s.PeakHours {
		fmt.Fprintf(w, "  %02d:00  %d\n", p.Hour, p.Count)
	}
}

func runLedger(entries []models.SyncEntry, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showIDs := fs.Bool("ids", false, "print every recorded id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := ledger.FromEntries(entries)

	color.New(color.FgCyan, color.Bold).Fprintln(stdout, "Dedup ledger")
	fmt.Fprintf(stdout, "  entries: %d\n  ids:     %d\n", len(entries), l.Len())
	if *showIDs {
		for _, id := range l.IDs() {
			fmt.Fprintln(stdout, id)
		}
	}
	return nil
}

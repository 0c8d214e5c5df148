package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"srs-planner/internal/model"
	"srs-planner/internal/notify"
	"srs-planner/internal/service"
)

func newScanCommand() *cobra.Command {
	var at string

	command := &cobra.Command{
		Use:   "scan",
		Short: "Run one reminder dispatch pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}

			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			var sender notify.MessageSender
			if a.cfg.Telegram.Token != "" {
				api, err := tgbotapi.NewBotAPI(a.cfg.Telegram.Token)
				if err != nil {
					return fmt.Errorf("create bot api: %w", err)
				}
				sender = api
			}
			fanout, closeChannels := a.fanout(sender)
			defer closeChannels()

			report, err := a.dispatcher(fanout).RunScan(cmd.Context(), now)
			if err != nil {
				return err
			}
			printScanReport(cmd.OutOrStdout(), now, report)
			return nil
		},
	}

	command.Flags().StringVar(&at, "at", "", "scan time in RFC 3339 (defaults to now)")
	return command
}

func newPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete dispatch log entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configFile, debugMode)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.dispatcher(notify.NewFanout()).PruneLogs(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d dispatch log entries\n", removed)
			return nil
		},
	}
}

func parseAt(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", value, err)
	}
	return t, nil
}

func printScanReport(w io.Writer, now time.Time, report service.ScanReport) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Dispatch scan at %s (%s)\n", now.UTC().Format(time.RFC3339), report.Duration.Round(time.Millisecond))

	kinds := make([]model.TriggerKind, 0, len(report.ByKind))
	for kind := range report.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		printKindReport(w, string(kind), report.ByKind[kind])
	}
	printKindReport(w, "total", report.KindReport)
}

func printKindReport(w io.Writer, name string, r service.KindReport) {
	fmt.Fprintf(w, "  %-20s evaluated %d  ", name, r.Evaluated)
	color.New(color.FgGreen).Fprintf(w, "sent %d  ", r.Sent)
	failed := color.New(color.FgHiBlack)
	if r.Failed+r.Errors > 0 {
		failed = color.New(color.FgRed)
	}
	failed.Fprintf(w, "failed %d  errors %d  ", r.Failed, r.Errors)
	fmt.Fprintf(w, "skipped %d\n", r.Skipped)
}

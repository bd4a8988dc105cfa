package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"stemworker/internal/apiclient"
	"stemworker/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapClientError(err)
			}
			health, healthErr := client.Health(cmd.Context())
			var apiErr *apiclient.APIError
			if healthErr != nil && !errors.As(healthErr, &apiErr) {
				return wrapClientError(healthErr)
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"status": status, "health": health})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string
			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			daemonKind := statusOK
			daemonMsg := fmt.Sprintf("running (pid %d)", status.PID)
			if !status.Running {
				daemonKind, daemonMsg = statusWarn, "stopped"
			}
			lines = append(lines,
				renderStatusLine("Daemon", daemonKind, daemonMsg, colorize),
				renderStatusLine("Queue backend", statusInfo, status.QueueBackend, colorize),
			)
			if status.TrackerPath != "" {
				lines = append(lines, renderStatusLine("Tracker", statusInfo, status.TrackerPath, colorize))
			}
			lines = append(lines, renderStatusLine("Processed", statusInfo, fmt.Sprintf("%d jobs", status.Workflow.Processed), colorize))
			if status.Workflow.LastError != "" {
				lines = append(lines, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, check := range health.Checks {
				kind := statusOK
				if !check.Ready {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(displayStatus(check.Name), kind, check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Jobs", colorize)...)
			names := make([]string, 0, len(status.Counts))
			for name := range status.Counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				lines = append(lines, renderStatusLine(displayStatus(name), jobStatusKind(name), fmt.Sprintf("%d", status.Counts[name]), colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API responses")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run local preflight checks without contacting the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, statusKindLabel(checkKind(r)), r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Result", "Detail"}, rows, nil))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func checkKind(r preflight.Result) statusKind {
	if r.Passed {
		return statusOK
	}
	return statusError
}

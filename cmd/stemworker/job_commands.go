package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stemworker/internal/api"
	"stemworker/internal/apiclient"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var callbackURL string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit <source_location> <destination_location>",
		Short: "Queue a folder for stem processing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.CreateJob(cmd.Context(), api.CreateJobRequest{
				SourceLocation:      args[0],
				DestinationLocation: args[1],
				CallbackURL:         callbackURL,
			})
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.Scan != nil && asJSON {
					_ = writeJSON(cmd, apiErr.Scan)
				}
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued %s (%s)\n", resp.ExecutionID, resp.FolderName)
			fmt.Fprintf(out, "Status: %s\n", displayStatus(resp.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&callbackURL, "callback", "", "URL notified when the job finishes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <execution_id>",
		Short: "Show one job with its results and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, job)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJob(job, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.ListJobs(cmd.Context(), statuses)
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(jobs))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <source_location>",
		Short: "Check whether a folder can be processed without queueing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Scan(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			out := cmd.OutOrStdout()
			kind := statusOK
			verdict := "processable"
			if !result.Processable {
				kind = statusError
				verdict = "not processable"
				if result.Error != "" {
					verdict = result.Error
				}
			}
			fmt.Fprintln(out, renderStatusLine("Folder", kind, verdict, colorize))
			if info := result.FolderInfo; info != nil {
				fmt.Fprintln(out, renderStatusLine("Name", statusInfo, info.Name, colorize))
				fmt.Fprintln(out, renderStatusLine("Mix files", statusInfo, strings.Join(info.MixFiles, ", "), colorize))
				fmt.Fprintln(out, renderStatusLine("Audio files", statusInfo, strconv.Itoa(info.TotalWavFiles), colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

func renderJobTable(jobs []api.JobView) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ExecutionID,
			displayStatus(job.Status),
			job.FolderName,
			strconv.Itoa(len(job.Results)),
			strconv.Itoa(len(job.Errors)),
			job.CreatedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Folder", "Results", "Errors", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderJob(job api.JobView, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Job "+job.ExecutionID, colorize) {
		b.WriteString(line + "\n")
	}
	lines := []string{
		renderStatusLine("Status", jobStatusKind(job.Status), displayStatus(job.Status), colorize),
		renderStatusLine("Folder", statusInfo, job.FolderName, colorize),
		renderStatusLine("Source", statusInfo, job.SourceLocation, colorize),
		renderStatusLine("Destination", statusInfo, job.DestinationLocation, colorize),
		renderStatusLine("Created", statusInfo, job.CreatedAt, colorize),
	}
	if job.ProcessedOutputLocation != "" {
		lines = append(lines, renderStatusLine("Output", statusOK, job.ProcessedOutputLocation, colorize))
	}
	if job.CompletedAt != "" {
		lines = append(lines, renderStatusLine("Completed", statusInfo, job.CompletedAt, colorize))
	}
	for _, line := range lines {
		b.WriteString(line + "\n")
	}

	if len(job.Results) > 0 {
		rows := make([][]string, 0, len(job.Results))
		for _, r := range job.Results {
			detail := r.Message
			if r.Error != "" {
				detail = r.Error
			}
			verified := ""
			if r.ExportVerified != nil {
				verified = yesNo(*r.ExportVerified)
			}
			rows = append(rows, []string{r.Stage, r.Status, r.File, verified, detail})
		}
		b.WriteString(renderTable([]string{"Stage", "Status", "File", "Verified", "Detail"}, rows, nil))
		b.WriteString("\n")
	}
	for _, e := range job.Errors {
		label := "Error"
		if e.Kind != "" {
			label = "Error (" + e.Kind + ")"
		}
		b.WriteString(renderStatusLine(label, statusError, e.Message, colorize) + "\n")
	}
	return b.String()
}

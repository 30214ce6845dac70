package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ripcord/internal/inspection"
	"ripcord/internal/ipc"
)

func parseTitleList(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	titles := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		index, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid title index %q", part)
		}
		titles = append(titles, index)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("no title indexes in %q", raw)
	}
	return titles, nil
}

func newRipCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "rip <drive-id> <titles>",
		Short: "Queue a rip of the given titles (comma-separated indexes)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			driveID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid drive id %q", args[0])
			}
			titles, err := parseTitleList(args[1])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Rip(driveID, titles, outputDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d queued: %s, %d title(s)\n",
					resp.Job.ID, inspection.DisplayLabel(resp.Job.DiscLabel), len(resp.Job.TitleIndexes))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Destination directory (overrides the configured output directory)")
	return cmd
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show the status of one rip job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobStatus(id)
				if err != nil {
					return err
				}
				printJobDetail(cmd, resp.Job)
				return nil
			})
		},
	}
}

func printJobDetail(cmd *cobra.Command, job ipc.JobInfo) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Job %d\n", job.ID)
	fmt.Fprintf(stdout, "  Disc:    %s (drive %d)\n", inspection.DisplayLabel(job.DiscLabel), job.DriveID)
	fmt.Fprintf(stdout, "  Titles:  %s\n", joinInts(job.TitleIndexes))
	fmt.Fprintf(stdout, "  Status:  %s\n", job.Status)
	if job.Status == "running" {
		fmt.Fprintf(stdout, "  Progress: %s %.0f%% (title %d)\n", job.ProgressStage, job.ProgressPercent, job.ProgressTitle)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(stdout, "  Error:   %s\n", job.ErrorMessage)
	}
	for _, file := range job.OutputFiles {
		fmt.Fprintf(stdout, "  File:    %s\n", file)
	}
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, strconv.Itoa(value))
	}
	return strings.Join(parts, ", ")
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List rip jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Jobs(statusFilters)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					detail := ""
					switch job.Status {
					case "running":
						detail = fmt.Sprintf("%s %.0f%%", job.ProgressStage, job.ProgressPercent)
					case "failed":
						detail = job.ErrorMessage
					case "completed":
						detail = fmt.Sprintf("%d file(s)", len(job.OutputFiles))
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						strconv.Itoa(job.DriveID),
						inspection.DisplayLabel(job.DiscLabel),
						joinInts(job.TitleIndexes),
						job.Status,
						detail,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Drive", "Disc", "Titles", "Status", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	jobsCmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (pending, reserving, running, completed, failed)")

	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx, "clear", "Remove completed and failed jobs", nil))
	jobsCmd.AddCommand(newJobsClearCommand(ctx, "clear-completed", "Remove completed jobs", []string{"completed"}))
	jobsCmd.AddCommand(newJobsClearCommand(ctx, "clear-failed", "Remove failed jobs", []string{"failed"}))
	return jobsCmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Put a failed job back in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Retry(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d requeued\n", id)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext, use, short string, statuses []string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobsClear(statuses)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running rip job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Cancel(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d cancelled\n", id)
				return nil
			})
		},
	}
}

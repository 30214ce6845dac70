package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ripcord/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start processing on a running ripcordd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Started {
					fmt.Fprintln(stdout, "Daemon started")
				} else {
					fmt.Fprintln(stdout, resp.Message)
				}
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop processing on the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, drive, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				runningKind := statusError
				if resp.Running {
					runningKind = statusOK
				}
				fmt.Fprintln(stdout, "Daemon")
				fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, yesNo(resp.Running), colorize))
				fmt.Fprintln(stdout, renderStatusLine("PID", statusOK, fmt.Sprintf("%d", resp.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Socket", statusOK, resp.SocketPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Job database", statusOK, resp.JobDBPath, colorize))
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, "Drives")
				if len(resp.Drives) == 0 {
					fmt.Fprintln(stdout, renderStatusLine("Attached", statusWarn, "none detected", colorize))
				}
				for _, drive := range resp.Drives {
					kind := statusOK
					if drive.State == "offline" {
						kind = statusWarn
					}
					detail := drive.State
					if drive.DiscLabel != "" {
						detail = fmt.Sprintf("%s, disc: %s", drive.State, drive.DiscLabel)
					}
					fmt.Fprintln(stdout, renderStatusLine(fmt.Sprintf("%d %s", drive.ID, drive.Device), kind, detail, colorize))
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, "Jobs")
				statuses := make([]string, 0, len(resp.JobStats))
				for status := range resp.JobStats {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				rows := make([][]string, 0, len(statuses))
				total := 0
				for _, status := range statuses {
					count := resp.JobStats[status]
					total += count
					if count == 0 {
						continue
					}
					rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
				}
				if total == 0 {
					fmt.Fprintln(stdout, "No jobs in queue")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

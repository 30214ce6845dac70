package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ripcord/internal/botfacade"
	"ripcord/internal/inspection"
	"ripcord/internal/ipc"
)

func newDrivesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List attached optical drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Drives()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Drives) == 0 {
					fmt.Fprintln(stdout, "No optical drives found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Drives))
				for _, drive := range resp.Drives {
					label := inspection.DisplayLabel(drive.DiscLabel)
					if label == "" {
						label = "(empty)"
					}
					rows = append(rows, []string{
						strconv.Itoa(drive.ID),
						drive.Device,
						drive.Model,
						label,
						drive.State,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Device", "Model", "Disc", "State"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
}

func newTitlesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "titles <drive-id>",
		Short: "List rippable titles on the disc in a drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driveID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid drive id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Titles(driveID)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Titles) == 0 {
					fmt.Fprintf(stdout, "No rippable titles in drive %d\n", driveID)
					return nil
				}
				fmt.Fprintf(stdout, "Disc: %s\n", inspection.DisplayLabel(resp.DiscLabel))
				rows := make([][]string, 0, len(resp.Titles))
				for _, title := range resp.Titles {
					main := ""
					if title.MainFeature {
						main = "*"
					}
					rows = append(rows, []string{
						strconv.Itoa(title.Index),
						title.Name,
						botfacade.FormatDuration(title.Duration),
						strconv.Itoa(title.Chapters),
						title.Size,
						main,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Title", "Name", "Duration", "Chapters", "Size", "Main"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

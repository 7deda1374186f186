/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ponyo877/replicator/client"
	"github.com/ponyo877/replicator/protocol"
	"github.com/spf13/cobra"
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail [room]",
	Short: "Prints snapshots of the other members of a room.",
	Long: `Joins a room and prints the first snapshot of the other members' poses.
With -f it keeps printing snapshots, at most one per --interval, until
interrupted.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := currentRoom()
		if len(args) == 1 {
			room = resolveRoom(args[0])
		}
		follow, _ := cmd.Flags().GetBool("follow")
		interval, _ := cmd.Flags().GetDuration("interval")

		opts, err := clientOptions(room)
		if err != nil {
			return err
		}
		// keep only the newest snapshot
		snapshots := make(chan []protocol.Shared, 1)
		opts.OnOthers = func(others []protocol.Shared) {
			select {
			case <-snapshots:
			default:
			}
			snapshots <- others
		}
		m := client.NewManager(opts)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return <-done
			case others := <-snapshots:
				if follow && time.Since(last) < interval {
					continue
				}
				last = time.Now()
				printSnapshot(os.Stdout, last, others)
				if !follow {
					cancel()
					return <-done
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().BoolP("follow", "f", false, "keep printing snapshots")
	tailCmd.Flags().Duration("interval", time.Second, "minimum time between printed snapshots with -f")
}

func printSnapshot(w io.Writer, at time.Time, others []protocol.Shared) {
	fmt.Fprintf(w, "[%s] %d other(s)\n", at.Format("15:04:05"), len(others))
	for _, o := range others {
		name := o.User.Name
		if name == "" {
			name = client.DefaultName
		}
		fmt.Fprintf(w, "  %s %-20s pos=%s%s%s\n", o.ID, name, formatVec(o.Pos),
			formatHand(" L=", o.Left), formatHand(" R=", o.Right))
	}
}

func formatVec(v protocol.Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v[0], v[1], v[2])
}

func formatHand(label string, h *protocol.HandPose) string {
	if h == nil {
		return ""
	}
	return label + formatVec(h.Pos)
}

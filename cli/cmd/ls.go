/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Lists active rooms.",
	Long: `Lists every room that currently has members, with its member count and
the time its oldest member joined. With -l the server's relay counters are
printed as well.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		long, _ := cmd.Flags().GetBool("long")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		res, err := admin.Rooms(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing rooms: %v\n", err)
			return
		}

		current := currentRoom()
		for _, room := range res.Rooms {
			name := displayRoom(room.Path)
			marker := " "
			if name == current {
				marker = "*"
			}
			since := "           "
			if !room.Since.IsZero() {
				t := room.Since.Local()
				since = fmt.Sprintf("%s %2d %s", t.Format("1"), t.Day(), t.Format("15:04"))
			}
			fmt.Printf("%s %3d  %s %s\n", marker, room.Members, since, name)
		}

		if long {
			s := res.Stats
			fmt.Printf("\nup %s, sessions %d active / %d total, messages %d, broadcasts %d, frames %d sent / %d dropped\n",
				s.Uptime, s.ActiveSessions, s.TotalSessions, s.TotalMessages, s.TotalBroadcasts, s.FramesSent, s.FramesDropped)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolP("long", "l", false, "also print relay counters")
}

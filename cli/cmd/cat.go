/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// catCmd represents the cat command
var catCmd = &cobra.Command{
	Use:   "cat [room...]",
	Short: "Displays the members of rooms.",
	Long: `Displays the current members of one or more rooms: id, display name,
colour, remote address and join time. Without arguments the current room is
shown.`,
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{""}
		}
		for _, arg := range args {
			room := resolveRoom(arg)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			res, err := admin.Members(ctx, room)
			cancel()
			if errors.Is(err, errNotFound) {
				fmt.Fprintf(os.Stderr, "cat: %s: no such room\n", room)
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing members of %s: %v\n", room, err)
				continue
			}

			if len(args) > 1 {
				fmt.Printf("%s:\n", room)
			}
			for _, m := range res.Members {
				name := m.Name
				if name == "" {
					name = "-"
				}
				colour := m.Colour
				if colour == "" {
					colour = "-"
				}
				fmt.Printf("%s  %-20s %-8s %-21s %s\n",
					m.ID, name, colour, m.Remote, m.JoinedAt.Local().Format("15:04:05"))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}

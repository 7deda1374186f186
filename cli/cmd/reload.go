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

// reloadCmd represents the reload command
var reloadCmd = &cobra.Command{
	Use:   "reload [room...]",
	Short: "Asks every member of a room to reset and reconnect.",
	Long: `Sends the reload command to every member of the given rooms (the current
room by default). Clients drop their local view of the room and join again.`,
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{""}
		}
		for _, arg := range args {
			room := resolveRoom(arg)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			res, err := admin.Reload(ctx, room)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reloading %s: %v\n", room, err)
				continue
			}
			fmt.Printf("%s: reload sent to %d member(s)\n", room, res.Sent)
		}
	},
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}

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

// grepCmd represents the grep command
var grepCmd = &cobra.Command{
	Use:   "grep <pattern> [room]",
	Short: "Searches the session history of a room.",
	Long: `Searches the join and leave history of a room (the current room by
default) for events whose display name or session id matches a regular
expression. The server must run with a history database.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: grepCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		pattern := args[0]
		room := currentRoom()
		if len(args) == 2 {
			room = resolveRoom(args[1])
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		res, err := admin.History(ctx, room, pattern, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching history for pattern '%s' in %s: %v\n", pattern, room, err)
			return
		}
		for _, e := range res.Events {
			printEvent(e)
		}
	},
}

func init() {
	rootCmd.AddCommand(grepCmd)
	grepCmd.Flags().IntP("limit", "n", 100, "maximum number of events")
}

func grepCompletionFunc(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return RoomCompletionFunc(cmd, nil, toComplete)
}

func printEvent(e historyEvent) {
	ts := e.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		ts = t.Local().Format("2006-01-02 15:04:05")
	}
	name := e.Name
	if name == "" {
		name = "-"
	}
	fmt.Printf("%s  %-5s %s  %-20s %s\n", ts, e.Type, e.SessionID, name, e.Remote)
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ponyo877/replicator/client"
	"github.com/spf13/cobra"
)

// idCmd represents the id command
var idCmd = &cobra.Command{
	Use:   "id [room]",
	Short: "Prints the id the server assigns to this client.",
	Long: `Connects to a room, waits for the server's handshake and prints the
assigned session id together with the local user record, then disconnects.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := currentRoom()
		if len(args) == 1 {
			room = resolveRoom(args[0])
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		opts, err := clientOptions(room)
		if err != nil {
			return err
		}
		ids := make(chan string, 1)
		opts.OnHandshake = func(id string) {
			select {
			case ids <- id:
			default:
			}
		}
		m := client.NewManager(opts)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		select {
		case id := <-ids:
			user := m.World().User()
			fmt.Printf("id=%s room=%s name=%s colour=%s\n", id, room, user.Name, user.RGB)
			cancel()
			return <-done
		case <-ctx.Done():
			<-done
			return fmt.Errorf("no handshake from %s within %s (state %s)", m.URL(), timeout, m.State())
		}
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.Flags().Duration("timeout", 10*time.Second, "how long to wait for the handshake")
}

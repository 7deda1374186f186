/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ponyo877/replicator/client"
	"github.com/ponyo877/replicator/protocol"
	"github.com/spf13/cobra"
)

// joinCmd represents the join command
var joinCmd = &cobra.Command{
	Use:   "join [room]",
	Short: "Joins a room headless and reports who comes and goes.",
	Long: `Joins a room as an avatar standing still at --pos and prints a line each
time another member joins or leaves. Runs until interrupted; the connection is
re-established automatically if the server goes away.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := currentRoom()
		if len(args) == 1 {
			room = resolveRoom(args[0])
		}
		pos, _ := cmd.Flags().GetFloat64Slice("pos")
		if len(pos) != 3 {
			return fmt.Errorf("--pos needs three values, got %d", len(pos))
		}

		opts, err := clientOptions(room)
		if err != nil {
			return err
		}
		tracker := newPresence()
		opts.OnHandshake = func(id string) {
			fmt.Printf("joined %s as %s\n", room, id)
		}
		opts.OnOthers = func(others []protocol.Shared) {
			for _, line := range tracker.update(others) {
				fmt.Println(line)
			}
		}
		opts.OnReload = func() {
			tracker.reset()
			fmt.Println("reloading")
		}

		m := client.NewManager(opts)
		m.World().SetPose(protocol.Vec3{pos[0], pos[1], pos[2]}, protocol.IdentityQuat)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return m.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().Float64Slice("pos", []float64{0, 0, 0}, "head position x,y,z")
}

// presence diffs consecutive snapshots into join and leave lines.
type presence struct {
	mu   sync.Mutex
	seen map[string]string
}

func newPresence() *presence {
	return &presence{seen: map[string]string{}}
}

func (p *presence) update(others []protocol.Shared) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lines []string
	next := make(map[string]string, len(others))
	for _, o := range others {
		name := o.User.Name
		if name == "" {
			name = client.DefaultName
		}
		next[o.ID] = name
		if _, ok := p.seen[o.ID]; !ok {
			lines = append(lines, fmt.Sprintf("+ %s %s", o.ID, name))
		}
	}
	for id, name := range p.seen {
		if _, ok := next[id]; !ok {
			lines = append(lines, fmt.Sprintf("- %s %s", id, name))
		}
	}
	p.seen = next
	return lines
}

func (p *presence) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = map[string]string{}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/ponyo877/replicator/client"
	"github.com/ponyo877/replicator/protocol"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [room]",
	Short: "Shows the members of a room in a live table",
	Long: `Joins a room and shows every other member's name, position, orientation
and hands in a table that refreshes several times a second. Press Ctrl+C or q
to leave.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		room := currentRoom()
		if len(args) == 1 {
			room = resolveRoom(args[0])
		}
		refresh, _ := cmd.Flags().GetDuration("refresh")

		opts, err := clientOptions(room)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runWatchUITview(client.NewManager(opts), room, refresh); err != nil {
			fmt.Fprintf(os.Stderr, "Watch UI error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("refresh", 100*time.Millisecond, "table refresh interval")
}

var watchHeaders = []string{"ID", "NAME", "POSITION", "ORIENTATION", "LEFT", "RIGHT"}

func runWatchUITview(m *client.Manager, room string, refresh time.Duration) error {
	app := tview.NewApplication()

	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(false, false)
	table.SetBorder(true).SetTitle(" " + room + " ")

	status := tview.NewTextView().SetDynamicColors(true)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, false).
		AddItem(status, 1, 0, false)
	app.SetRoot(flex, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				others := m.World().Others()
				state := m.State()
				id := m.World().ID()
				app.QueueUpdateDraw(func() {
					fillWatchTable(table, others)
					status.SetText(fmt.Sprintf("[yellow]%s[white] %s  id=%s  members=%d  (q to quit)",
						state, m.URL(), orDash(id), len(others)+1))
				})
			}
		}
	}()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			cancel()
			app.Stop()
			return nil
		}
		return event
	})

	if err := app.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return <-done
}

func fillWatchTable(table *tview.Table, others []protocol.Shared) {
	table.Clear()
	for col, h := range watchHeaders {
		table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, o := range others {
		row := i + 1
		name := o.User.Name
		if name == "" {
			name = client.DefaultName
		}
		nameColour := tcell.ColorWhite
		if v, ok := o.User.RGB.Value(); ok {
			nameColour = tcell.NewHexColor(int32(v))
		}
		table.SetCell(row, 0, tview.NewTableCell(o.ID))
		table.SetCell(row, 1, tview.NewTableCell(name).SetTextColor(nameColour))
		table.SetCell(row, 2, tview.NewTableCell(formatVec(o.Pos)))
		table.SetCell(row, 3, tview.NewTableCell(formatQuat(o.Quat)))
		table.SetCell(row, 4, tview.NewTableCell(handCell(o.Left)))
		table.SetCell(row, 5, tview.NewTableCell(handCell(o.Right)))
	}
}

func formatQuat(q protocol.Quat) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", q[0], q[1], q[2], q[3])
}

func handCell(h *protocol.HandPose) string {
	if h == nil {
		return "-"
	}
	return formatVec(h.Pos)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

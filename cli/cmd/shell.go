package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-shellwords"
	"github.com/ponyo877/replicator/client"
	"github.com/ponyo877/replicator/protocol"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell [room]",
	Short: "Joins a room and drives the local avatar from a prompt",
	Long: `Joins a room and opens an interactive prompt that moves the local avatar.
The pose is published to the room continuously while the prompt is open.

  pose x y z                    move the head
  quat x y z w                  turn the head
  hand left|right x y z         track a hand at a position
  hand left|right off           stop tracking a hand
  name <name>                   rename yourself
  colour <colour>               change colour, e.g. #ff8800
  status                        connection and local pose
  others                        latest snapshot of the room
  exit                          leave`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	RunE: func(cmd *cobra.Command, args []string) error {
		room := currentRoom()
		if len(args) == 1 {
			room = resolveRoom(args[0])
		}
		opts, err := clientOptions(room)
		if err != nil {
			return err
		}
		m := client.NewManager(opts)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		sh := &shellSession{m: m, out: os.Stdout}
		p := prompt.New(
			func(line string) {
				if err := sh.exec(line); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			},
			shellCompleter,
			prompt.OptionTitle("replicator "+room),
			prompt.OptionLivePrefix(func() (string, bool) {
				return fmt.Sprintf("%s [%s] ❯ ", room, m.State()), true
			}),
			prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
				in = strings.TrimSpace(in)
				return breakline && (in == "exit" || in == "quit")
			}),
		)
		p.Run()

		cancel()
		return <-done
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellSuggestions = []prompt.Suggest{
	{Text: "pose", Description: "pose x y z"},
	{Text: "quat", Description: "quat x y z w"},
	{Text: "hand", Description: "hand left|right x y z | off"},
	{Text: "name", Description: "name <name>"},
	{Text: "colour", Description: "colour <colour>"},
	{Text: "status", Description: "connection and local pose"},
	{Text: "others", Description: "latest snapshot of the room"},
	{Text: "exit", Description: "leave the room"},
}

var handSuggestions = []prompt.Suggest{
	{Text: "left", Description: "left controller"},
	{Text: "right", Description: "right controller"},
}

func shellCompleter(d prompt.Document) []prompt.Suggest {
	words := strings.Fields(d.TextBeforeCursor())
	word := d.GetWordBeforeCursor()
	// a trailing space means the current word is empty
	if word == "" {
		words = append(words, "")
	}
	switch len(words) {
	case 1:
		return prompt.FilterHasPrefix(shellSuggestions, word, true)
	case 2:
		if words[0] == "hand" {
			return prompt.FilterHasPrefix(handSuggestions, word, true)
		}
	case 3:
		if words[0] == "hand" {
			return prompt.FilterHasPrefix([]prompt.Suggest{{Text: "off", Description: "stop tracking"}}, word, true)
		}
	}
	return nil
}

var errUsage = errors.New("usage")

// shellSession applies prompt commands to a manager's world.
type shellSession struct {
	m   *client.Manager
	out io.Writer
}

func (s *shellSession) exec(line string) error {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	w := s.m.World()
	switch args[0] {
	case "pose":
		v, err := parseFloats(args[1:], 3)
		if err != nil {
			return fmt.Errorf("%w: pose x y z", err)
		}
		w.SetPose(protocol.Vec3{v[0], v[1], v[2]}, w.Self().Quat)
	case "quat":
		v, err := parseFloats(args[1:], 4)
		if err != nil {
			return fmt.Errorf("%w: quat x y z w", err)
		}
		w.SetPose(w.Self().Pos, protocol.Quat{v[0], v[1], v[2], v[3]})
	case "hand":
		return s.hand(args[1:])
	case "name":
		if len(args) != 2 || args[1] == "" {
			return fmt.Errorf("%w: name <name>", errUsage)
		}
		user := w.User()
		user.Name = args[1]
		return s.setUser(user)
	case "colour", "color":
		if len(args) != 2 {
			return fmt.Errorf("%w: colour <colour>", errUsage)
		}
		c, err := protocol.ParseColour(args[1])
		if err != nil {
			return fmt.Errorf("invalid colour %q: %w", args[1], err)
		}
		user := w.User()
		user.RGB = c
		return s.setUser(user)
	case "status":
		self := w.Self()
		fmt.Fprintf(s.out, "%s %s id=%s\n", s.m.State(), s.m.URL(), orDash(self.ID))
		fmt.Fprintf(s.out, "  %s %s pos=%s quat=%s%s%s\n", self.User.Name, self.User.RGB,
			formatVec(self.Pos), formatQuat(self.Quat),
			formatHand(" L=", self.Left), formatHand(" R=", self.Right))
	case "others":
		printSnapshot(s.out, time.Now(), w.Others())
	case "exit", "quit":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func (s *shellSession) hand(args []string) error {
	usage := fmt.Errorf("%w: hand left|right x y z | off", errUsage)
	if len(args) == 0 {
		return usage
	}
	var h protocol.Hand
	switch args[0] {
	case "left", "l":
		h = protocol.Left
	case "right", "r":
		h = protocol.Right
	default:
		return usage
	}
	if len(args) == 2 && args[1] == "off" {
		s.m.World().SetHand(h, nil)
		return nil
	}
	v, err := parseFloats(args[1:], 3)
	if err != nil {
		return usage
	}
	quat := protocol.IdentityQuat
	if current := s.m.World().Self().Hand(h); current != nil {
		quat = current.Quat
	}
	s.m.World().SetHand(h, &protocol.HandPose{Pos: protocol.Vec3{v[0], v[1], v[2]}, Quat: quat})
	return nil
}

// setUser updates the local record and tells the server right away when
// connected. Otherwise the record goes out with the next connection.
func (s *shellSession) setUser(u protocol.User) error {
	s.m.World().SetUser(u)
	if s.m.State() != client.StateConnected {
		fmt.Fprintln(s.out, "not connected, the change is sent on reconnect")
		return nil
	}
	return s.m.SendUser()
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, errUsage
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, errUsage
		}
		out[i] = v
	}
	return out, nil
}

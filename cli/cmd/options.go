package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ponyo877/replicator/client"
	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// adminBaseURL returns the configured admin URL, or the server URL with its
// websocket scheme swapped for the matching HTTP one.
func adminBaseURL() (string, error) {
	if raw := viper.GetString(adminURLKey); raw != "" {
		return strings.TrimSuffix(raw, "/"), nil
	}
	u, err := url.Parse(viper.GetString(serverURLKey))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme %q", u.String(), u.Scheme)
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// localUser builds the user record from the name and colour settings.
func localUser() (protocol.User, error) {
	name := viper.GetString(nameKey)
	if name == "" {
		name = client.DefaultName
	}
	colour := protocol.NewColour(client.DefaultColour)
	switch raw := viper.GetString(colourKey); {
	case raw != "":
		c, err := protocol.ParseColour(raw)
		if err != nil {
			return protocol.User{}, fmt.Errorf("invalid colour %q: %w", raw, err)
		}
		colour = c
	case viper.GetBool(randomColourKey):
		colour = client.RandomColour()
	}
	return protocol.NewUser(name, colour), nil
}

// clientOptions assembles manager options for room from viper settings.
func clientOptions(room string) (client.Options, error) {
	user, err := localUser()
	if err != nil {
		return client.Options{}, err
	}
	opts := client.DefaultOptions()
	opts.URL = strings.TrimSuffix(viper.GetString(serverURLKey), "/")
	opts.Room = room
	opts.User = user
	opts.ReloadOnDisconnect = viper.GetBool(reloadOnDisconnectKey)
	if d := viper.GetDuration(reconnectDelayKey); d > 0 {
		opts.ReconnectDelay = d
	}
	opts.Logger = newLogger(viper.GetString(logLevelKey))
	return opts, nil
}

// newLogger writes to stderr so it never mixes with command output.
func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// RoomCompletionFunc completes room names from the server's active rooms.
func RoomCompletionFunc(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	base, err := adminBaseURL()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	list, err := newAdminClient(base).Rooms(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, r := range list.Rooms {
		name := displayRoom(r.Path)
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// displayRoom shows the server's default room as the root room clients dial.
func displayRoom(p domain.RoomPath) string {
	if p.IsDefault() {
		return client.DefaultRoom
	}
	return p.String()
}

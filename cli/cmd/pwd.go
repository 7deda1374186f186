/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/ponyo877/replicator/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const currentRoomKey = "current_room"

// pwdCmd represents the pwd command
var pwdCmd = &cobra.Command{
	Use:   "pwd",
	Short: "Prints the current room.",
	Long: `Prints the room used by join, watch and the admin commands when no room
is given. Change it with cd.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(currentRoom())
	},
}

func init() {
	rootCmd.AddCommand(pwdCmd)
}

func currentRoom() string {
	room := viper.GetString(currentRoomKey)
	if room == "" {
		return client.DefaultRoom
	}
	if !strings.HasPrefix(room, "/") {
		room = "/" + room
	}
	return path.Clean(room)
}

// resolveRoom turns a room argument into an absolute room path. Relative
// names are joined to the current room the way cd resolves directories.
func resolveRoom(arg string) string {
	if arg == "" {
		return currentRoom()
	}
	if strings.HasPrefix(arg, "/") {
		return path.Clean(arg)
	}
	return path.Join(currentRoom(), arg)
}

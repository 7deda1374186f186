/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ponyo877/replicator/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cdCmd represents the cd command
var cdCmd = &cobra.Command{
	Use:   "cd [room]",
	Short: "Changes the current room.",
	Long: `Changes the current room managed by this CLI.
If no room is specified, it changes to the root room "/".
Rooms need not exist yet: a room appears on the server when its first member joins.
This command updates the room stored in the configuration file.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		target := client.DefaultRoom
		if len(args) == 1 {
			target = resolveRoom(args[0])
		}

		viper.Set(currentRoomKey, target)
		if err := writeConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing config file:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cdCmd)
}

// writeConfig saves viper's settings, creating the config file on first use.
func writeConfig() error {
	if err := viper.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		file := viper.ConfigFileUsed()
		if file == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			file = filepath.Join(home, ".replicator.yaml")
		}
		return viper.WriteConfigAs(file)
	}
	return nil
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ponyo877/replicator/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [key value]",
	Short: "Gets or sets client settings.",
	Long: `Manages configuration for the replicator client.
If called without arguments, it displays the effective settings.
With a key and a value it stores the setting in the configuration file.
Keys: name, colour, server, admin.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	ValidArgs: []string{"name", "colour", "server", "admin"},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			showConfig()
			return
		}
		if err := setConfig(args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting %s: %v\n", args[0], err)
			return
		}
		if err := writeConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing config file:", err)
			return
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig() {
	user, err := localUser()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	base, err := adminBaseURL()
	if err != nil {
		base = err.Error()
	}
	fmt.Printf("Server:               %s\n", viper.GetString(serverURLKey))
	fmt.Printf("Admin:                %s\n", base)
	fmt.Printf("Room:                 %s\n", currentRoom())
	fmt.Printf("Name:                 %s\n", user.Name)
	fmt.Printf("Colour:               %s\n", user.RGB)
	fmt.Printf("Reload on disconnect: %t\n", viper.GetBool(reloadOnDisconnectKey))
	fmt.Printf("Reconnect delay:      %s\n", viper.GetDuration(reconnectDelayKey))
	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Printf("Config file:          %s\n", file)
	}
}

func setConfig(key, value string) error {
	switch key {
	case "name":
		viper.Set(nameKey, value)
	case "colour", "color":
		c, err := protocol.ParseColour(value)
		if err != nil {
			return err
		}
		viper.Set(colourKey, c.String())
	case "server", "admin":
		u, err := url.Parse(value)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%q is not an absolute URL", value)
		}
		if key == "server" {
			viper.Set(serverURLKey, value)
		} else {
			viper.Set(adminURLKey, value)
		}
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

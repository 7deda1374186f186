/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-shellwords"
	"github.com/ponyo877/replicator/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	admin   *adminClient
)

const (
	serverURLKey          = "server_url"
	adminURLKey           = "admin_url"
	nameKey               = "name"
	colourKey             = "colour"
	randomColourKey       = "random_colour"
	reloadOnDisconnectKey = "reload_on_disconnect"
	reconnectDelayKey     = "reconnect_delay"
	logLevelKey           = "log_level"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "replicator-cli",
	Short: "Joins, watches and inspects replicator rooms",
	Long: `replicator-cli talks to a replicator server. It can join a room as an
avatar, watch the other members move, and query the server's admin API for
rooms, members and session history.

Rooms behave like directories: cd changes the current room and relative
room names are resolved against it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		base, err := adminBaseURL()
		if err != nil {
			return err
		}
		admin = newAdminClient(base)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// one‑shot
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
			return
		}
		return
	}

	// REPL
	fmt.Println("entering interactive mode, type 'exit' to quit")
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s ❯❯❯ ", currentRoom())
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return
			}
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error parsing command:", err)
			continue
		}
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			// cobra already printed it; stay in the loop
			continue
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.replicator.yaml)")
	flags.String("server", client.DefaultURL, "websocket URL of the replicator server")
	flags.String("admin", "", "admin HTTP URL (default derived from --server)")
	flags.String("name", "", "display name sent to other members")
	flags.String("colour", "", "avatar colour, e.g. #ff8800 (default #6495ed)")
	flags.Bool("random-colour", false, "pick a random avatar colour when none is configured")
	flags.Bool("reload-on-disconnect", false, "reset the local world before every reconnect")
	flags.Duration("reconnect-delay", client.DefaultOptions().ReconnectDelay, "wait between reconnect attempts")
	flags.String("log-level", "warn", "client log level (debug, info, warn, error)")

	viper.BindPFlag(serverURLKey, flags.Lookup("server"))
	viper.BindPFlag(adminURLKey, flags.Lookup("admin"))
	viper.BindPFlag(nameKey, flags.Lookup("name"))
	viper.BindPFlag(colourKey, flags.Lookup("colour"))
	viper.BindPFlag(randomColourKey, flags.Lookup("random-colour"))
	viper.BindPFlag(reloadOnDisconnectKey, flags.Lookup("reload-on-disconnect"))
	viper.BindPFlag(reconnectDelayKey, flags.Lookup("reconnect-delay"))
	viper.BindPFlag(logLevelKey, flags.Lookup("log-level"))
	viper.SetDefault(serverURLKey, client.DefaultURL)
	viper.SetDefault(currentRoomKey, client.DefaultRoom)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".replicator" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".replicator")
	}

	viper.SetEnvPrefix("replicator")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shellmux/shellmux/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "shellmux",
	Short: "Persistent shell sessions with pollable commands and log tails",
	Long: `Shellmux runs commands inside persistent PTY-backed shell sessions.
Commands keep their shell state (working directory, environment, history)
between invocations, long commands can run in the background and be polled
for output, and log files can be followed through the session's shell.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/shellmux/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/shellmux")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SHELLMUX")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SHELLMUX_SESSION_MAX_SESSIONS for session.max_sessions
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

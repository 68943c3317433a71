// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "migrator",
	Short: "Migrator upgrades Fedora repositories",
	Long: `Migrator upgrades a Fedora repository from one version to the next.

Upgrading from 5.x to 6.x walks the whole resource tree of a repository export and recreates every
resource as an object of a new OCFL storage root. Upgrading from 4.7.5 to 5.x renames technical
metadata in place.
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(exitConfiguration)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if os.Getenv("MIGRATOR_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("MIGRATOR_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.migrator")
		viper.AddConfigPath("/etc/migrator")
		viper.SetConfigName("migrator")
	}

	viper.SetEnvPrefix("migrator")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}

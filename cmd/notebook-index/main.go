// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the notebook-index CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-index/internal/logging"
	"github.com/pdiddy/notebook-index/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Set

// rootCmd is the base command for the notebook-index CLI.
var rootCmd = &cobra.Command{
	Use:   "notebook-index",
	Short: "Build hyperlinked indexes over a notebook knowledge graph",
	Long: `notebook-index reads a knowledge graph of entities, relationships, and
notebook page mentions, and exports Entity, Topic, Notebook, and Master
indexes as markdown. Every name that has a section in an index links to
it; a link-free fallback is always written beside the hyperlinked form.

Use "graph ingest" to load YAML graph exports into the local store, then
"build" to produce the indexes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(logging.New(loadConfig().Logging))

		s, err := secrets.Load(".secrets/", slog.Default())
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			slog.Debug("loaded secrets", "keys", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./notebook-index.yaml or ~/.config/notebook-index/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().String("db", "", "SQLite graph database (default index/graph.db)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("store.db_path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("notebook-index")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "notebook-index"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("NOTEBOOK_INDEX")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

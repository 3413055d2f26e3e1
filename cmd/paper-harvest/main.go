// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-harvest CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-harvest/internal/logging"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is loaded once in PersistentPreRunE and read by every command.
	cfg types.HarvestConfig

	log      *logrus.Entry
	closeLog = func() error { return nil }
)

// rootCmd is the base command for the paper-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-harvest",
	Short: "Collect paper metadata and citations for a literature review",
	Long: `paper-harvest gathers the raw material of a literature review. It crawls
IEEE Xplore search results page by page with a headless browser, scrapes
citations and PDFs from ISCA Archive paper pages, and turns the collected
rows into Word documents.

Every tool appends to its output and skips records already there, so an
interrupted run is resumed by running the same command again.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return closeLog() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-harvest.yaml or ~/.config/paper-harvest/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warning, error); overrides log.level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-harvest"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the config file over the defaults, so settings the
// file omits keep their default value.
func loadConfig(v *viper.Viper) (types.HarvestConfig, error) {
	c := types.DefaultHarvestConfig()
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}

	l, closeFn, err := logging.New(c.Log, os.Stderr)
	if err != nil {
		return err
	}
	cfg = c
	closeLog = closeFn
	log = logging.WithRun(l, cmd.CommandPath())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

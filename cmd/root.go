// Package cmd provides the astral command-line interface.
//
// Configuration is read from .astral.yml, the file named by --config or
// ASTRAL_CONFIG_FILE, and ASTRAL_<SECTION>_<KEY> environment variables, in
// increasing order of precedence. Command flags override all of them.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/astral/internal/config"
	"github.com/conneroisu/astral/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "astral",
	Short: "Compile and serve .astro component sites",
	Long: `astral compiles .astro and .md components into JavaScript render
modules and serves or exports the pages they make up.

Quick Start:
  astral serve                    Start the development server
  astral build                    Export the site to dist/
  astral compile src/pages/x.astro  Print one compiled module
  astral watch                    Recompile on every change`,
	SilenceUsage:      true,
	PersistentPreRunE: setupConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .astral.yml, can also use ASTRAL_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("root", ".", "project root")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("project.root", rootCmd.PersistentFlags().Lookup("root"))
}

// normalizeFlagName accepts config style spellings such as --log_level.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func setupConfig(*cobra.Command, []string) error {
	return config.Setup(viper.GetViper(), cfgFile)
}

// loadConfig validates the merged configuration and builds the logger it
// describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Logging.Format,
		Component: "astral",
	})
	return cfg, logger, nil
}

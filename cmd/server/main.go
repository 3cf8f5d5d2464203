/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the cash-flow forecast service. Subcommands run
  the HTTP API or a single forecast against the configured database.

COMMANDS:
  serve      Start the HTTP API (default when no subcommand is given)
  calculate  Run one plan file and print the projection as JSON

GLOBAL FLAGS:
  --config   TOML config file (default: forecast.toml, optional)

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, SCHEDULER_SPEC, ALLOWED_ORIGINS override the
  config file. See config/config.go.

EXAMPLES:
  # Run with file database
  DB_PATH=./data/forecast.db ./server serve

  # Run with in-memory database and demo data
  DB_PATH=":memory:" ./server serve

  # Forecast a plan for a family
  ./server calculate --plan plan.json --family fam-1

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/cashflow-forecast/config"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Cash-flow forecast service",
	Long:          "Projects month-by-month family balances from income, historical spending and planned items.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "forecast.toml", "TOML config file")
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

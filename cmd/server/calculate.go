package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/cashflow-forecast/api"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlite"
)

var (
	flagPlan     string
	flagFamily   string
	flagWithPlan bool
)

// calculateOutput is printed with --with-plan.
type calculateOutput struct {
	Plan   factory.PlanJSON      `json:"plan"`
	Result api.ForecastResultDTO `json:"result"`
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Run a forecast plan against the configured database",
	Long:  "Reads a plan JSON file, resolves the family's accounts and prints the month-by-month projection.",
	RunE:  runCalculate,
}

func init() {
	calculateCmd.Flags().StringVarP(&flagPlan, "plan", "p", "", "Plan JSON file (- for stdin)")
	calculateCmd.Flags().StringVarP(&flagFamily, "family", "f", "", "Family ID (defaults to the plan's family_id)")
	calculateCmd.Flags().BoolVar(&flagWithPlan, "with-plan", false, "Echo the normalized plan alongside the result")
	calculateCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var data []byte
	if flagPlan == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(flagPlan)
	}
	if err != nil {
		return fmt.Errorf("reading plan: %w", err)
	}

	plans := factory.NewPlanFactory()
	plan, err := plans.ParsePlan(data)
	if err != nil {
		return err
	}

	family := forecast.FamilyID(flagFamily)
	if family == "" {
		family = plan.FamilyID
	}
	if family == "" {
		return fmt.Errorf("--family or plan family_id required")
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	user, err := store.UserContext(ctx, family)
	if err != nil {
		return err
	}

	engine := forecast.NewEngine(store, store, user)
	engine.Log = logger.WithField("plan_id", plan.ID)

	result, err := engine.Calculate(ctx, *plan)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if !flagWithPlan {
		return enc.Encode(api.ToForecastResultDTO(result))
	}

	pj, err := plans.ToJSON(plan)
	if err != nil {
		return err
	}
	return enc.Encode(calculateOutput{Plan: pj, Result: api.ToForecastResultDTO(result)})
}

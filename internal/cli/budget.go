package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/pkg/storage"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage organization daily budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update an organization's daily limits",
	RunE:  runBudgetSet,
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's budget usage",
	RunE:  runBudgetStatus,
}

var budgetDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate an organization's budget",
	RunE:  runBudgetDeactivate,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetStatusCmd)
	budgetCmd.AddCommand(budgetDeactivateCmd)

	budgetSetCmd.Flags().StringP("org", "o", "", "Organization id")
	budgetSetCmd.Flags().Int64("tokens", 0, "Daily token limit")
	budgetSetCmd.Flags().Float64("cost", 0, "Daily cost limit in USD")
	_ = budgetSetCmd.MarkFlagRequired("org")
	_ = budgetSetCmd.MarkFlagRequired("tokens")
	_ = budgetSetCmd.MarkFlagRequired("cost")

	budgetStatusCmd.Flags().StringP("org", "o", "", "Organization id (default: all active budgets)")

	budgetDeactivateCmd.Flags().StringP("org", "o", "", "Organization id")
	_ = budgetDeactivateCmd.MarkFlagRequired("org")
}

func runBudgetSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	org, _ := cmd.Flags().GetString("org")
	tokens, _ := cmd.Flags().GetInt64("tokens")
	cost, _ := cmd.Flags().GetFloat64("cost")

	l, store, err := initLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := l.SetLimits(cmd.Context(), org, tokens, cost)
	if err != nil {
		return err
	}

	fmt.Printf("Budget set:\n")
	fmt.Printf("  Organization:  %s\n", b.OrganizationID)
	fmt.Printf("  Daily tokens:  %d\n", b.DailyTokenLimit)
	fmt.Printf("  Daily cost:    $%.2f\n", b.DailyCostLimit)
	fmt.Printf("  Used today:    %d tokens, $%.4f\n", b.TokensUsedToday, b.CostUsedToday)

	return nil
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	org, _ := cmd.Flags().GetString("org")

	l, store, err := initLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var orgs []string
	if org != "" {
		orgs = []string{org}
	} else {
		budgets, err := store.ListBudgets(cmd.Context())
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		for _, b := range budgets {
			orgs = append(orgs, b.OrganizationID)
		}
	}

	if len(orgs) == 0 {
		fmt.Println("No budgets configured. Use 'genroute budget set' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ORGANIZATION\tTOKENS\tTOKEN LIMIT\tCOST\tCOST LIMIT\tUSAGE\n")
	for _, o := range orgs {
		s, err := l.UsageStats(cmd.Context(), o)
		if err != nil {
			return err
		}

		status := ""
		switch {
		case s.PercentageUsed >= 100*cfg.Budget.SoftMultiplier:
			status = " [OPEN ONLY]"
		case s.PercentageUsed >= 100:
			status = " [EXCEEDED]"
		case s.PercentageUsed >= cfg.Budget.AlertThresholdPct:
			status = " [WARNING]"
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t$%.4f\t$%.2f\t%.1f%%%s\n",
			s.OrganizationID, s.TokensUsed, s.TokensLimit,
			s.CostUsed, s.CostLimit, s.PercentageUsed, status,
		)
	}
	w.Flush()

	return nil
}

func runBudgetDeactivate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	org, _ := cmd.Flags().GetString("org")

	l, store, err := initLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := l.Deactivate(cmd.Context(), org); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no active budget for %s", org)
		}
		return err
	}
	fmt.Printf("Budget for %s deactivated.\n", org)
	return nil
}

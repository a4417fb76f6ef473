package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/pkg/model"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report generation usage and cost",
	Long:  `Aggregate the generation log by provider and task for a daily, weekly or monthly period.`,
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().StringP("org", "o", "", "Filter by organization")
	usageCmd.Flags().StringP("period", "P", "daily", "Report period (daily, weekly, monthly)")
	usageCmd.Flags().StringP("provider", "p", "", "Filter by provider (kind:model)")
	usageCmd.Flags().StringP("task", "t", "", "Filter by task")
	usageCmd.Flags().Bool("detailed", false, "Show individual generations")
}

func runUsage(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	org, _ := cmd.Flags().GetString("org")
	period, _ := cmd.Flags().GetString("period")
	providerFilter, _ := cmd.Flags().GetString("provider")
	taskFilter, _ := cmd.Flags().GetString("task")
	detailed, _ := cmd.Flags().GetBool("detailed")

	switch model.ReportPeriod(period) {
	case model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
	default:
		return fmt.Errorf("unknown period %q: want daily, weekly or monthly", period)
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	start, end := model.PeriodBounds(model.ReportPeriod(period), time.Now())
	filter := model.ReportFilter{
		OrganizationID: org,
		Provider:       providerFilter,
		Task:           taskFilter,
		StartTime:      start,
		EndTime:        end,
	}

	summary, err := store.AggregateUsage(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	fmt.Printf("=== Generation Usage (%s) ===\n", period)
	if org != "" {
		fmt.Printf("Organization: %s\n", org)
	}
	fmt.Printf("Period: %s to %s\n\n", start.Format(model.DateLayout), end.Format(model.DateLayout))
	fmt.Printf("Total Cost:          $%.4f\n", summary.TotalCostUSD)
	fmt.Printf("Total Input Tokens:  %d\n", summary.TotalInputTokens)
	fmt.Printf("Total Output Tokens: %d\n", summary.TotalOutputTokens)
	fmt.Printf("Total Generations:   %d\n", summary.RecordCount)

	printBreakdown("PROVIDER", summary.ByProvider)
	printBreakdown("TASK", summary.ByTask)

	if detailed {
		records, err := store.QueryUsage(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("query records: %w", err)
		}

		if len(records) > 0 {
			fmt.Printf("\nDetailed Records:\n")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  TIMESTAMP\tORG\tTASK\tPROVIDER\tIN\tOUT\tCOST\tREASON\n")
			for _, r := range records {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%d\t$%.6f\t%s\n",
					r.Timestamp.Format("2006-01-02 15:04"),
					r.OrganizationID, r.Task, r.Provider,
					r.InputTokens, r.OutputTokens,
					r.CostUSD, r.PolicyReason,
				)
			}
			w.Flush()
		}
	}

	return nil
}

func printBreakdown(label string, costs map[string]float64) {
	if len(costs) == 0 {
		return
	}
	names := make([]string, 0, len(costs))
	for name := range costs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\nBy %s:\n", label)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  %s\tCOST\n", label)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t$%.4f\n", name, costs[name])
	}
	w.Flush()
}

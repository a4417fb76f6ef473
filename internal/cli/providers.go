package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect providers and rates",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider ids and their per-1K-token rates",
	RunE:  runProvidersList,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd)
}

func runProvidersList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	est, err := initEstimator(cfg)
	if err != nil {
		return err
	}

	rates := est.Rates()
	ids := make([]string, 0, len(rates))
	for id := range rates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("Primary: %s\nOpen:    %s\n\n", cfg.Providers.Primary, cfg.Providers.Open)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROVIDER\tINPUT ($/1K)\tOUTPUT ($/1K)\tROLE\n")
	for _, id := range ids {
		r := rates[id]
		role := "-"
		switch {
		case id == cfg.Providers.Primary:
			role = "primary"
		case id == cfg.Providers.Open:
			role = "open"
		case r.Local:
			role = "local"
		}
		fmt.Fprintf(w, "%s\t$%.5f\t$%.5f\t%s\n", id, r.InputPer1K, r.OutputPer1K, role)
	}
	w.Flush()

	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/pkg/estimator"
	"github.com/ogulcanaydogan/genroute/pkg/providers"
	"github.com/ogulcanaydogan/genroute/pkg/tokenizer"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate tokens and cost for a prompt",
	Long: `Compare the coarse length-based token estimate used for budgeting with a
tokenizer count, and price the prompt for a provider.`,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().String("text", "", "Prompt text")
	estimateCmd.Flags().String("system", "", "System message")
	estimateCmd.Flags().StringP("provider", "p", "", "Provider id (default: configured primary)")
	estimateCmd.Flags().Int("output-tokens", 0, "Expected output tokens")
	_ = estimateCmd.MarkFlagRequired("text")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text, _ := cmd.Flags().GetString("text")
	system, _ := cmd.Flags().GetString("system")
	providerID, _ := cmd.Flags().GetString("provider")
	outTokens, _ := cmd.Flags().GetInt("output-tokens")
	if providerID == "" {
		providerID = cfg.Providers.Primary
	}
	if _, err := providers.ParseID(providerID); err != nil {
		return err
	}

	est, err := initEstimator(cfg)
	if err != nil {
		return err
	}

	coarse := estimator.EstimateTokens(text + system)
	counted, err := tokenizer.CountPrompt(providerID, text, system)
	if err != nil {
		return fmt.Errorf("count tokens: %w", err)
	}

	fmt.Printf("Provider:          %s\n", providerID)
	fmt.Printf("Estimated tokens:  %d (chars/4, used for budgets)\n", coarse)
	if counted.Exact {
		fmt.Printf("Tokenizer count:   %d (%s, incl. chat framing)\n", counted.Tokens, counted.Encoding)
	} else {
		fmt.Printf("Tokenizer count:   n/a for this provider\n")
	}
	fmt.Printf("Estimated cost:    $%.6f (%d in, %d out)\n",
		est.EstimateCost(providerID, coarse, outTokens), coarse, outTokens)
	if _, ok := est.Rate(providerID); !ok {
		fmt.Printf("Note: no rate for %s, the open rate was used.\n", providerID)
	}
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/pkg/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a single generation through the routing core",
	RunE:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("task", "t", "", "Task name (e.g. ads_copy, summarize)")
	generateCmd.Flags().StringP("prompt", "p", "", "Prompt text")
	generateCmd.Flags().StringP("system", "s", "", "System message")
	generateCmd.Flags().StringP("org", "o", "", "Organization id to charge")
	generateCmd.Flags().Bool("critical", false, "Mark the request as critical")
	generateCmd.Flags().String("provider", "", "Preferred hosted provider (kind:model)")
	generateCmd.Flags().Bool("json", false, "Print the full result as JSON")
	_ = generateCmd.MarkFlagRequired("task")
	_ = generateCmd.MarkFlagRequired("prompt")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := model.GenerationRequest{}
	req.Task, _ = cmd.Flags().GetString("task")
	req.Prompt, _ = cmd.Flags().GetString("prompt")
	req.System, _ = cmd.Flags().GetString("system")
	req.OrganizationID, _ = cmd.Flags().GetString("org")
	req.Critical, _ = cmd.Flags().GetBool("critical")
	req.Provider, _ = cmd.Flags().GetString("provider")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := initApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.Text)
	fmt.Fprintf(os.Stderr, "\nprovider=%s tokens=%d+%d cost=$%.6f cached=%t duration=%s",
		res.Provider, res.InputTokens, res.OutputTokens, res.CostUSD, res.FromCache, res.Duration)
	if res.PolicyReason != "" {
		fmt.Fprintf(os.Stderr, " reason=%q", res.PolicyReason)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

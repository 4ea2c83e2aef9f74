package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a stored rule set against a JSON context",
	Long: `Evaluate loads a rule set, decodes the context document into the context
type of the rule set's scope and prints the result as JSON.

Use --context - to read the context from standard input.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().Int64("rule-set", 0, "rule set id")
	evaluateCmd.Flags().String("context", "", "context JSON file (- for stdin)")
	evaluateCmd.MarkFlagRequired("rule-set")
}

type evaluateOutput struct {
	Matched      bool   `json:"matched"`
	EvaluationID string `json:"evaluation_id"`
	RuleSetID    int64  `json:"rule_set_id"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ruleSetID, _ := cmd.Flags().GetInt64("rule-set")
	contextPath, _ := cmd.Flags().GetString("context")

	var data []byte
	switch contextPath {
	case "":
	case "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(contextPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read context: %w", err)
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	evaluator, err := newEvaluator(cfg, database, logger)
	if err != nil {
		return err
	}

	result, err := evaluator.EvaluateJSON(ctx, ruleSetID, data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(evaluateOutput{
		Matched:      result.Matched,
		EvaluationID: string(result.EvaluationID),
		RuleSetID:    result.RuleSetID,
	})
}

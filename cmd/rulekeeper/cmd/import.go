package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import rule sets from a YAML document",
	Long: `Import reads a YAML document of rule sets and stores them in one transaction.

Nested groups are written inline under "groups" and stored as sub groups of
their parent. The ids of the imported top-level rule sets are printed one per
line.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := store.New(database)
	if err != nil {
		return err
	}
	ids, err := st.Import(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", args[0], err)
	}

	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	logger.Info("imported rule sets", slog.String("file", args[0]), slog.Int("count", len(ids)))
	return nil
}

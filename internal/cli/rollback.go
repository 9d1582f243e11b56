package cli

import (
	"fmt"
	"strconv"

	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var rollbackNoReload bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback [n]",
	Short: "Undo the most recent configuration changes",
	Long: `Restore the configuration files of the newest n checkpoints
(default 1) and reload nginx.

Examples:
  nginxtls rollback
  nginxtls rollback 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackNoReload, "no-reload", false, "Do not reload nginx after restoring")

	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	n := 1
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid checkpoint count %q", args[0])
		}
		n = parsed
	}

	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	if err := eng.RollbackN(n); err != nil {
		return err
	}

	if !rollbackNoReload {
		output.Info("Reloading nginx...")
		if err := eng.Restart(); err != nil {
			return fmt.Errorf("failed to reload nginx: %w", err)
		}
	}

	return outputResult(
		map[string]interface{}{
			"success":     true,
			"rolled_back": n,
		},
		"Rolled back %d checkpoint(s)", n,
	)
}

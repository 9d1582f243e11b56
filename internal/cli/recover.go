package cli

import (
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Revert state left behind by an interrupted run",
	Long: `Restore the configuration files of a transaction that never
committed and remove leftover validation files. Safe to run when
there is nothing to recover.

Examples:
  nginxtls recover`,
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	eng := deps.EngineFactory.Create(settings)
	if err := eng.Recover(); err != nil {
		return err
	}

	return outputResult(
		map[string]interface{}{"success": true},
		"Recovered interrupted state",
	)
}

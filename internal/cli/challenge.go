package cli

import (
	"github.com/spf13/cobra"

	"github.com/ksyq12/nginxtls/internal/output"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage HTTP-01 validation files",
	Long:  `Place and clean up HTTP-01 validation files in a domain's webroot.`,
}

var challengeWriteCmd = &cobra.Command{
	Use:   "write <domain> <token> <content>",
	Short: "Write a validation response file",
	Long: `Write an HTTP-01 validation response into the domain's webroot.

The file is tracked in a temporary checkpoint, so "challenge clean"
and "recover" can remove it even after an interrupted run.

Examples:
  nginxtls challenge write example.com TOKEN TOKEN.KEYAUTH`,
	Args: cobra.ExactArgs(3),
	RunE: runChallengeWrite,
}

var challengeCleanCmd = &cobra.Command{
	Use:   "clean <domain>",
	Short: "Remove the validation files for a domain",
	Long: `Remove every validation file written for the domain, revert
temporary state and reload nginx.

Examples:
  nginxtls challenge clean example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runChallengeClean,
}

func init() {
	challengeCmd.AddCommand(challengeWriteCmd)
	challengeCmd.AddCommand(challengeCleanCmd)

	rootCmd.AddCommand(challengeCmd)
}

func runChallengeWrite(cmd *cobra.Command, args []string) error {
	domain := args[0]
	if err := validateDomain(domain); err != nil {
		return err
	}

	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// No tree needed: the challenge file lives outside the configuration.
	eng := deps.EngineFactory.Create(settings)
	path, err := eng.WriteChallenge(domain, args[1], args[2])
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(map[string]interface{}{
			"success": true,
			"domain":  domain,
			"path":    path,
		})
	}

	output.Success("Challenge file written to %s", path)
	return nil
}

func runChallengeClean(cmd *cobra.Command, args []string) error {
	domain := args[0]
	if err := validateDomain(domain); err != nil {
		return err
	}

	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	eng := deps.EngineFactory.Create(settings)
	if err := eng.CleanupChallenges(domain); err != nil {
		return err
	}

	return outputResult(
		newSuccessResult(domain, "challenge-clean"),
		"Challenge files removed for %s", domain,
	)
}

package cli

import (
	"fmt"

	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/spf13/cobra"
)

var enhanceNoReload bool

var enhanceCmd = &cobra.Command{
	Use:   "enhance <domain> <enhancement> [arg]",
	Short: "Apply a hardening enhancement to a deployed domain",
	Long: `Apply a follow-up enhancement to the server blocks serving a domain.

Supported enhancements:
  redirect       Redirect plain HTTP requests to HTTPS
  hsts           Add a Strict-Transport-Security response header
  staple-ocsp    Enable OCSP stapling (pass the chain file as arg)

Examples:
  nginxtls enhance example.com redirect
  nginxtls enhance example.com hsts
  nginxtls enhance example.com staple-ocsp chain.pem`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().BoolVar(&enhanceNoReload, "no-reload", false, "Do not reload nginx after committing")

	rootCmd.AddCommand(enhanceCmd)
}

func runEnhance(cmd *cobra.Command, args []string) error {
	domain := args[0]
	if err := validateDomain(domain); err != nil {
		return err
	}

	name := args[1]
	arg := ""
	if len(args) == 3 {
		arg = args[2]
	}

	// Friendly aliases for the engine's enhancement names.
	switch name {
	case "hsts":
		name = configurator.EnhanceHeader
		arg = "Strict-Transport-Security"
	case "staple":
		name = configurator.EnhanceStaple
	}
	if name == configurator.EnhanceStaple && arg == "" {
		return fmt.Errorf("staple-ocsp requires the chain file as an argument")
	}

	err := runTransaction(fmt.Sprintf("enhance %s with %s", domain, name), !enhanceNoReload,
		func(eng *configurator.Configurator) error {
			return eng.Enhance(domain, name, arg)
		})
	if err != nil {
		return err
	}

	return outputResult(
		newSuccessResult(domain, fmt.Sprintf("enhance:%s", name)),
		"Enhancement %s applied for %s", name, domain,
	)
}

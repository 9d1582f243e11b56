package cli

import (
	"fmt"
	"time"

	"github.com/ksyq12/nginxtls/internal/certs"
	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var (
	deployDomain    string
	deployCert      string
	deployKey       string
	deployChain     string
	deployFullchain string
	deploySkipCheck bool
	deployNoReload  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install a certificate into the server blocks serving a domain",
	Long: `Deploy certificate material into the nginx configuration.

The server blocks serving the domain are rewritten to listen on the
HTTPS port with the given certificate and key. When no block serves
the domain, the default server block is duplicated for it. The change
is validated with nginx -t and checkpointed for rollback.

Examples:
  nginxtls deploy -d example.com --cert cert.pem --key key.pem --chain chain.pem --fullchain fullchain.pem
  nginxtls deploy -d example.com --key key.pem --fullchain fullchain.pem --no-reload`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&deployDomain, "domain", "d", "", "Domain to deploy the certificate for (required)")
	deployCmd.Flags().StringVar(&deployCert, "cert", "", "Certificate file")
	deployCmd.Flags().StringVar(&deployKey, "key", "", "Private key file (required)")
	deployCmd.Flags().StringVar(&deployChain, "chain", "", "Issuer chain file")
	deployCmd.Flags().StringVar(&deployFullchain, "fullchain", "", "Certificate plus chain file (required)")
	deployCmd.Flags().BoolVar(&deploySkipCheck, "skip-check", false, "Skip the certificate preflight checks")
	deployCmd.Flags().BoolVar(&deployNoReload, "no-reload", false, "Do not reload nginx after committing")
	deployCmd.MarkFlagRequired("domain")
	deployCmd.MarkFlagRequired("key")
	deployCmd.MarkFlagRequired("fullchain")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if err := validateDomain(deployDomain); err != nil {
		return err
	}

	if !deploySkipCheck {
		bundle, err := certs.Preflight(deployDomain, deployFullchain, deployKey, time.Now())
		if err != nil {
			return err
		}
		if left, soon := bundle.ExpiresSoon(time.Now()); soon {
			output.Warn("Certificate for %s expires in %d days", deployDomain, int(left.Hours()/24))
		}
	}

	err := runTransaction(fmt.Sprintf("deploy %s", deployDomain), !deployNoReload,
		func(eng *configurator.Configurator) error {
			return eng.DeployCertificate(deployDomain, deployCert, deployKey, deployChain, deployFullchain)
		})
	if err != nil {
		return err
	}

	return outputResult(
		newSuccessResult(deployDomain, "deploy"),
		"Certificate deployed for %s", deployDomain,
	)
}

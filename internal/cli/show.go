package cli

import (
	"strings"
	"time"

	"github.com/ksyq12/nginxtls/internal/certs"
	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show the server block serving a domain",
	Long: `Resolve which server block serves a domain and print it.

Resolution follows nginx: exact server names win over wildcards,
wildcards over regular expressions.

Examples:
  nginxtls show example.com
  nginxtls show example.com --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// showDetail represents the resolved server block for output
type showDetail struct {
	Domain     string     `json:"domain"`
	Names      []string   `json:"names"`
	Listens    []string   `json:"listens"`
	SSL        bool       `json:"ssl"`
	SSLCert    string     `json:"ssl_cert,omitempty"`
	SSLExpires *time.Time `json:"ssl_expires,omitempty"`
	File       string     `json:"file"`
	Block      string     `json:"block"`
}

func runShow(cmd *cobra.Command, args []string) error {
	domain := args[0]

	// Validate domain
	if err := validateDomain(domain); err != nil {
		return err
	}

	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	vh, err := eng.FindVHost(domain)
	if err != nil {
		return err
	}

	listens := make([]string, len(vh.Addrs))
	for i, a := range vh.Addrs {
		listens[i] = a.String()
	}

	detail := showDetail{
		Domain:  domain,
		Names:   vh.Names,
		Listens: listens,
		SSL:     vh.SSL,
		File:    vh.FilePath,
		Block:   vh.Node.String(),
	}

	// Report certificate expiry when the block already carries one.
	if cert := vh.Node.FindFirst("ssl_certificate"); cert != nil && len(cert.Args) > 0 {
		detail.SSLCert = cert.Args[0]
		if bundle, err := certs.LoadBundle(cert.Args[0]); err == nil {
			expires := bundle.Leaf.NotAfter
			detail.SSLExpires = &expires
		}
	}

	// Output JSON if requested
	if jsonOutput {
		return output.JSON(detail)
	}

	// Human-readable output
	output.Print("")
	output.Print("Domain:   %s", detail.Domain)
	output.Print("File:     %s", detail.File)
	output.Print("Names:    %s", strings.Join(detail.Names, " "))
	output.Print("Listen:   %s", strings.Join(detail.Listens, ", "))

	if detail.SSL {
		output.Print("SSL:      enabled")
		if detail.SSLCert != "" {
			output.Print("  Cert:    %s", detail.SSLCert)
		}
		if detail.SSLExpires != nil {
			output.Print("  Expires: %s", detail.SSLExpires.Format("2006-01-02"))
		}
	} else {
		output.Print("SSL:      disabled")
	}

	output.Print("")
	output.Print("%s", detail.Block)

	return nil
}

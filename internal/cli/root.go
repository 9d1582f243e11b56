package cli

import (
	"os"

	"github.com/ksyq12/nginxtls/internal/logger"
	"github.com/spf13/cobra"
)

var (
	jsonOutput   bool
	verbose      bool
	settingsPath string
	serverRoot   string
	nginxBin     string
	version      = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nginxtls",
	Short: "TLS certificate management for nginx configurations",
	Long: `nginxtls installs TLS certificates into an existing nginx installation.

It parses the full nginx configuration tree, finds the server blocks
serving a domain, and rewrites them in place: certificate directives,
HTTP to HTTPS redirects, security headers and OCSP stapling. Every
change is checkpointed, validated by nginx itself, and can be rolled
back.`,
}

// Execute runs the root command
func Execute() {
	// Initialize logger based on verbose flag (parsed by cobra)
	cobra.OnInitialize(func() {
		logger.Init(verbose)
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default ~/.config/nginxtls/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverRoot, "server-root", "", "nginx configuration root (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&nginxBin, "nginx-bin", "", "nginx binary (overrides settings)")
}

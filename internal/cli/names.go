package cli

import (
	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List the domain names the configuration serves",
	Long: `List every concrete domain name found in the nginx configuration,
the names a certificate could be requested for. Wildcard and regex
server names are left out; address-only server blocks contribute
their reverse DNS name.

Examples:
  nginxtls names
  nginxtls names --json`,
	RunE: runNames,
}

func init() {
	rootCmd.AddCommand(namesCmd)
}

func runNames(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	names := eng.AllNames()
	if jsonOutput {
		return output.JSON(names)
	}

	if len(names) == 0 {
		output.Info("No domain names found")
		return nil
	}
	for _, name := range names {
		output.Print("%s", name)
	}
	return nil
}

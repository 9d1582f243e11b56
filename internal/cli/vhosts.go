package cli

import (
	"strings"

	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var vhostsCmd = &cobra.Command{
	Use:     "vhosts",
	Aliases: []string{"ls"},
	Short:   "List the server blocks in the nginx configuration",
	Long: `List every server block found in the nginx configuration tree.

Examples:
  nginxtls vhosts
  nginxtls vhosts --json`,
	RunE: runVHosts,
}

func init() {
	rootCmd.AddCommand(vhostsCmd)
}

type vhostListItem struct {
	Names   []string `json:"names"`
	Listens []string `json:"listens"`
	SSL     bool     `json:"ssl"`
	Enabled bool     `json:"enabled"`
	File    string   `json:"file"`
}

func runVHosts(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	// Keep derivation order: it follows file paths and block position.
	vhosts := eng.Tree().VHosts()
	items := make([]vhostListItem, 0, len(vhosts))
	for _, vh := range vhosts {
		listens := make([]string, len(vh.Addrs))
		for i, a := range vh.Addrs {
			listens[i] = a.String()
		}
		items = append(items, vhostListItem{
			Names:   vh.Names,
			Listens: listens,
			SSL:     vh.SSL,
			Enabled: vh.Enabled,
			File:    vh.FilePath,
		})
	}

	if len(items) == 0 {
		if jsonOutput {
			return output.JSON([]vhostListItem{})
		}
		output.Info("No server blocks found")
		return nil
	}

	if jsonOutput {
		return output.JSON(items)
	}

	headers := []string{"SERVER NAMES", "LISTEN", "SSL", "ENABLED", "FILE"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		names := strings.Join(item.Names, " ")
		if names == "" {
			names = "-"
		}
		ssl := "no"
		if item.SSL {
			ssl = "yes"
		}
		enabled := "no"
		if item.Enabled {
			enabled = "yes"
		}
		rows = append(rows, []string{
			names,
			strings.Join(item.Listens, ", "),
			ssl,
			enabled,
			item.File,
		})
	}

	output.Table(headers, rows)
	return nil
}

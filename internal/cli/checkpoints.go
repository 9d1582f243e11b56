package cli

import (
	"strconv"

	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List the rollback checkpoints",
	Long: `List the finalized checkpoints, newest first. Each checkpoint
holds the pre-change snapshots of one committed transaction.

Examples:
  nginxtls checkpoints
  nginxtls checkpoints --json`,
	RunE: runCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
}

type checkpointItem struct {
	Time  string   `json:"time"`
	Title string   `json:"title"`
	Files []string `json:"files"`
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// No need to parse the configuration to read checkpoint metadata.
	eng := deps.EngineFactory.Create(settings)
	cps, err := eng.Checkpoints()
	if err != nil {
		return err
	}

	items := make([]checkpointItem, 0, len(cps))
	for _, cp := range cps {
		files := make([]string, 0, len(cp.Files)+len(cp.NewFiles))
		for _, f := range cp.Files {
			files = append(files, f.Path)
		}
		files = append(files, cp.NewFiles...)
		items = append(items, checkpointItem{
			Time:  cp.CreatedAt.Format("2006-01-02 15:04:05"),
			Title: cp.Title,
			Files: files,
		})
	}

	if jsonOutput {
		return output.JSON(items)
	}

	if len(items) == 0 {
		output.Info("No checkpoints")
		return nil
	}

	headers := []string{"TIME", "TITLE", "FILES"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Time, item.Title, strconv.Itoa(len(item.Files))})
	}

	output.Table(headers, rows)
	return nil
}

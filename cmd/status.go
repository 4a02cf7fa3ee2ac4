package cmd

import (
	"github.com/spf13/cobra"
)

// statusCmd shows which backend is open and where.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage backend status",
	Long: `Show the active storage backend, its location and whether it has
pending writes. Running taskmap without a command does the same.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st := ctx.DB.Status()
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{
			"status":  st,
			"dataDir": ctx.Config.Storage.DataDir,
		})
	}

	f := ctx.CLIFormatter()
	f.PrintBackendStatus(st)
	f.Printf("  Data directory: %s\n", ctx.Config.Storage.DataDir)
	f.Println()
	f.Muted("Run 'taskmap --help' to see all commands.")
	return nil
}

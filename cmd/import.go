package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/repo"
	"github.com/manav03panchal/taskmap/internal/storage"
)

var importFlagStore string

// importCmd represents the import command.
var importCmd = &cobra.Command{
	Use:     "import FILE",
	Aliases: []string{"restore"},
	Short:   "Import data from an export",
	Long: `Import a snapshot written by 'taskmap export', replacing each store it
contains. With --store the file must be a single store's JSON array, and
only that store is replaced.

Records that fail to import are reported by id. Use "-" to read stdin.

Examples:
  taskmap import backup.json
  taskmap import --store tasks tasks.json
  cat backup.json | taskmap import -`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFlagStore, "store", "s", "", "Replace only this store")

	_ = importCmd.RegisterFlagCompletionFunc("store", completeStores)

	rootCmd.AddCommand(importCmd)
}

func readImportFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewUserErrorWithField("file", path, "Cannot read import file", "Check the path and permissions.")
	}
	return data, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := readImportFile(cmd, args[0])
	if err != nil {
		return err
	}

	c := cmd.Context()
	var results map[string]storage.BatchResult
	if importFlagStore != "" {
		res, err := ctx.DB.Backend().ImportData(c, importFlagStore, string(data))
		if err != nil {
			return err
		}
		results = map[string]storage.BatchResult{importFlagStore: res}
	} else {
		var snap repo.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil || snap.Stores == nil {
			return errors.NewUserErrorWithField("file", args[0], "Not a taskmap snapshot",
				"Export one with 'taskmap export', or pass --store for a single store array.")
		}
		results, err = ctx.DB.ImportAll(c, &snap)
		if err != nil {
			if errors.Is(err, repo.ErrSnapshotVersion) {
				return errors.NewUserError(err.Error(), "Upgrade taskmap before importing this snapshot.")
			}
			return err
		}
	}

	for store, res := range results {
		logging.Info("import finished", logging.KeyStore, store,
			"ok", res.OK, logging.KeyCount, res.Succeeded, "failed", len(res.Failed))
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintImport(results)
	}
	ctx.CLIFormatter().PrintBatchResults(results)
	return nil
}

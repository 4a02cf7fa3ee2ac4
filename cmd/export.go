package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// Export command flags.
var (
	exportFlagStore  string
	exportFlagOutput string
	exportFlagCSV    bool
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"ex", "dump", "backup"},
	Short:   "Export data as JSON",
	Long: `Export the whole database as one snapshot, or a single store as a JSON
array. A single store can also be written as CSV.

When --output names a directory, a dated file name is chosen inside it.

Examples:
  taskmap export
  taskmap export -o backup.json
  taskmap export --store tasks -o ~/exports/
  taskmap export --store timerRecords --csv -o timers.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlagStore, "store", "s", "", "Export only this store")
	exportCmd.Flags().StringVarP(&exportFlagOutput, "output", "o", "", "Output file or directory (stdout if omitted)")
	exportCmd.Flags().BoolVar(&exportFlagCSV, "csv", false, "Write CSV (requires --store)")

	_ = exportCmd.RegisterFlagCompletionFunc("store", completeStores)

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFlagCSV && exportFlagStore == "" {
		return errors.NewUserError("CSV export needs a single store", "Add --store, for example --store tasks.")
	}

	c := cmd.Context()
	var payload []byte
	if exportFlagStore == "" {
		snap, err := ctx.DB.ExportAll(c)
		if err != nil {
			return err
		}
		payload, err = json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
	} else {
		data, err := ctx.DB.Backend().ExportData(c, exportFlagStore)
		if err != nil {
			return err
		}
		payload = []byte(data)
	}

	w := cmd.OutOrStdout()
	path := ""
	if exportFlagOutput != "" {
		path = exportPath(exportFlagOutput)
		f, err := os.Create(path)
		if err != nil {
			return errors.NewUserErrorWithField("output", path, "Cannot create export file", "Check that the directory exists and is writable.")
		}
		defer f.Close()
		w = f
	}

	var err error
	if exportFlagCSV {
		err = exportCSV(w, payload)
	} else {
		_, err = fmt.Fprintln(w, string(payload))
	}
	if err != nil {
		return err
	}

	logging.DebugContext(c, "export written", logging.KeyStore, exportFlagStore, logging.KeyPath, path)
	if path != "" && !ctx.IsJSON() {
		ctx.CLIFormatter().Success("Exported to " + path)
	}
	return nil
}

// exportPath resolves a directory output to a dated file inside it.
func exportPath(out string) string {
	info, err := os.Stat(out)
	if err != nil || !info.IsDir() {
		return out
	}
	name := model.SchemaName
	if exportFlagStore != "" {
		name += "-" + exportFlagStore
	}
	name += "-" + now().Format("20060102-150405")
	ext := ".json"
	if exportFlagCSV {
		ext = ".csv"
	}
	return filepath.Join(out, validate.SafeFilename(name)+ext)
}

// exportCSV flattens a store's JSON array. The key field comes first and
// the remaining columns are the sorted union of all record fields.
func exportCSV(w io.Writer, payload []byte) error {
	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		return err
	}

	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		ki, kj := isKeyColumn(cols[i]), isKeyColumn(cols[j])
		if ki != kj {
			return ki
		}
		return cols[i] < cols[j]
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, r := range records {
		for i, col := range cols {
			row[i] = csvValue(r[col])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func isKeyColumn(name string) bool {
	return name == "id" || name == "key"
}

func csvValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprint(x)
	case bool:
		return fmt.Sprint(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

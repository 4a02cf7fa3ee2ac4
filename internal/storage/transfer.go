package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
)

// EncodeExport renders records as an indented JSON array.
func EncodeExport(records []model.Record) (string, error) {
	if records == nil {
		records = []model.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	return string(data), nil
}

// ImportPlan is a parsed import payload ready to be written.
type ImportPlan struct {
	// Records holds the importable records keyed in payload order, with
	// later duplicates replacing earlier ones.
	Records []model.Record
	Keys    []string
	// Result already carries the entries that could not be imported.
	Result BatchResult
}

// ParseImport parses an import payload for cfg. The second return value is
// false when data is not a JSON array, in which case nothing may be
// written. Elements that are not objects, or lack a string key, are
// recorded as failures ("#<position>" when no key is available).
func ParseImport(cfg model.StoreConfig, data string) (ImportPlan, bool) {
	plan := ImportPlan{Result: NewBatchResult()}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &items); err != nil || items == nil {
		logging.Warn("malformed import payload",
			logging.KeyStore, cfg.Name,
			logging.KeyError, errString(err))
		plan.Result.OK = false
		return plan, false
	}

	position := make(map[string]int, len(items))
	for i, raw := range items {
		rec, err := model.DecodeRecord(raw)
		if err != nil {
			plan.Result.Fail(fmt.Sprintf("#%d", i))
			continue
		}
		key, err := RecordKey(cfg, rec)
		if err != nil {
			plan.Result.Fail(fmt.Sprintf("#%d", i))
			continue
		}
		if at, dup := position[key]; dup {
			plan.Records[at] = rec
			continue
		}
		position[key] = len(plan.Records)
		plan.Records = append(plan.Records, rec)
		plan.Keys = append(plan.Keys, key)
	}

	if len(plan.Result.Failed) > 0 {
		logging.Warn("import payload has invalid entries",
			logging.KeyStore, cfg.Name,
			logging.KeyCount, len(plan.Result.Failed))
	}
	return plan, true
}

func errString(err error) string {
	if err == nil {
		return "payload is not a JSON array"
	}
	return err.Error()
}

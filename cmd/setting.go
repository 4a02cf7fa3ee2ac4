package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// settingCmd represents the setting command.
var settingCmd = &cobra.Command{
	Use:     "setting",
	Aliases: []string{"settings", "set", "cfg"},
	Short:   "Manage stored settings",
	Long: `Settings are key/value pairs kept in the database. Values that parse
as JSON (numbers, booleans, arrays, objects) are stored as such; anything
else is stored as a string.

Examples:
  taskmap setting set theme dark --category ui
  taskmap setting set pomodoro.work 25
  taskmap setting get theme
  taskmap setting list --category ui
  taskmap setting delete theme`,
	RunE: runSettingList,
}

var settingFlagCategory string

var settingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingList,
}

var settingGetCmd = &cobra.Command{
	Use:               "get KEY",
	Short:             "Show a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingArgs,
	RunE:              runSettingGet,
}

var settingSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Create or replace a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingSet,
}

var settingDeleteCmd = &cobra.Command{
	Use:               "delete KEY",
	Aliases:           []string{"rm", "unset"},
	Short:             "Delete a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingArgs,
	RunE:              runSettingDelete,
}

func init() {
	for _, c := range []*cobra.Command{settingCmd, settingListCmd, settingSetCmd} {
		c.Flags().StringVarP(&settingFlagCategory, "category", "c", "", "Setting category")
	}

	settingCmd.AddCommand(settingListCmd, settingGetCmd, settingSetCmd, settingDeleteCmd)
	rootCmd.AddCommand(settingCmd)
}

func runSettingList(cmd *cobra.Command, args []string) error {
	var (
		settings []*model.Setting
		err      error
	)
	if settingFlagCategory != "" {
		settings, err = ctx.DB.Settings.GetByCategory(cmd.Context(), settingFlagCategory)
	} else {
		settings, err = ctx.DB.Settings.GetAll(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printItems(settings, ctx.CLIFormatter().PrintSettings)
}

func runSettingGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	s, err := ctx.DB.Settings.Get(cmd.Context(), key)
	if err != nil {
		return err
	}
	if s == nil {
		return errors.NotFound(errors.ErrSettingNotFound, key)
	}
	return printEntity(s, func() {
		ctx.Formatter.Println(formatSettingValue(s.Value))
	})
}

func runSettingSet(cmd *cobra.Command, args []string) error {
	key := validate.SanitizeName(args[0])
	if err := validate.NonEmpty("key", key); err != nil {
		return err
	}

	s, err := ctx.DB.Settings.Set(cmd.Context(), key, parseSettingValue(args[1]), settingFlagCategory)
	if err != nil {
		return err
	}
	return printEntity(s, func() {
		ctx.CLIFormatter().Success(fmt.Sprintf("%s = %s", key, formatSettingValue(s.Value)))
	})
}

func runSettingDelete(cmd *cobra.Command, args []string) error {
	deleted, err := ctx.DB.Settings.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printDeleted("setting", args[0], deleted)
}

// parseSettingValue decodes raw as JSON when it is a number, boolean,
// null, array or object, and keeps it as a string otherwise.
func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func formatSettingValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

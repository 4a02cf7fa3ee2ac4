package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/parser"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// habitCmd represents the habit command.
var habitCmd = &cobra.Command{
	Use:     "habit",
	Aliases: []string{"habits", "hab"},
	Short:   "Track recurring habits",
	Long: `Create habits and check in when you do them. Streaks count consecutive
days, weeks or months (by frequency) with at least one check-in.

Examples:
  taskmap habit create "Read 20 pages" --frequency daily
  taskmap habit checkin hab-20240313100000-ab12cd3
  taskmap habit checkin hab-20240313100000-ab12cd3 --date yesterday
  taskmap habit --frequency weekly`,
	RunE: runHabitList,
}

// Habit flags.
var (
	habitListFlagFrequency string

	habitFlagID          string
	habitFlagFrequency   string
	habitFlagTarget      int
	habitFlagColor       string
	habitFlagIcon        string
	habitFlagDescription string
	habitFlagDate        string
)

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits",
	Args:  cobra.NoArgs,
	RunE:  runHabitList,
}

var habitCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE:  runHabitCreate,
}

var habitCheckInCmd = &cobra.Command{
	Use:               "checkin HABIT_ID",
	Aliases:           []string{"check", "done"},
	Short:             "Record that you did a habit",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHabitArgs,
	RunE:              runHabitCheckIn,
}

var habitDeleteCmd = &cobra.Command{
	Use:               "delete HABIT_ID",
	Aliases:           []string{"rm"},
	Short:             "Delete a habit",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHabitArgs,
	RunE:              runHabitDelete,
}

func init() {
	frequencies := []string{"daily", "weekly", "monthly"}
	for _, c := range []*cobra.Command{habitCmd, habitListCmd} {
		c.Flags().StringVar(&habitListFlagFrequency, "frequency", "", "Filter by frequency")
		_ = c.RegisterFlagCompletionFunc("frequency", cobra.FixedCompletions(frequencies, cobra.ShellCompDirectiveNoFileComp))
	}

	habitCreateCmd.Flags().StringVar(&habitFlagID, "id", "", "Custom ID (generated if omitted)")
	habitCreateCmd.Flags().StringVar(&habitFlagFrequency, "frequency", string(model.HabitDaily), "daily, weekly or monthly")
	habitCreateCmd.Flags().IntVar(&habitFlagTarget, "target", 0, "Target check-ins per period")
	habitCreateCmd.Flags().StringVar(&habitFlagColor, "color", "", "Hex color (#RRGGBB)")
	habitCreateCmd.Flags().StringVar(&habitFlagIcon, "icon", "", "Icon")
	habitCreateCmd.Flags().StringVarP(&habitFlagDescription, "description", "d", "", "Description")
	_ = habitCreateCmd.RegisterFlagCompletionFunc("frequency", cobra.FixedCompletions(frequencies, cobra.ShellCompDirectiveNoFileComp))

	habitCheckInCmd.Flags().StringVar(&habitFlagDate, "date", "", "When you did it (default now)")

	habitCmd.AddCommand(habitListCmd, habitCreateCmd, habitCheckInCmd, habitDeleteCmd)
	rootCmd.AddCommand(habitCmd)
}

func runHabitList(cmd *cobra.Command, args []string) error {
	var (
		habits []*model.Habit
		err    error
	)
	if habitListFlagFrequency != "" {
		if err := validate.Frequency(habitListFlagFrequency); err != nil {
			return err
		}
		habits, err = ctx.DB.Habits.GetByFrequency(cmd.Context(), model.HabitFrequency(habitListFlagFrequency))
	} else {
		habits, err = ctx.DB.Habits.GetAll(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printItems(habits, ctx.CLIFormatter().PrintHabits)
}

func runHabitCreate(cmd *cobra.Command, args []string) error {
	name := validate.SanitizeName(args[0])
	if err := validate.Name("habit", name); err != nil {
		return err
	}
	if err := validate.ID(habitFlagID); err != nil {
		return err
	}
	if err := validate.Frequency(habitFlagFrequency); err != nil {
		return err
	}
	if err := validate.HexColor(habitFlagColor); err != nil {
		return err
	}
	if err := validate.InRange("target", habitFlagTarget, 0, 366); err != nil {
		return err
	}

	h := model.NewHabit(name, model.HabitFrequency(habitFlagFrequency), habitFlagTarget)
	h.ID = habitFlagID
	h.Color = habitFlagColor
	h.Icon = habitFlagIcon
	h.Description = validate.SanitizeNote(habitFlagDescription)

	h, err := ctx.DB.Habits.Create(cmd.Context(), h)
	if err != nil {
		return err
	}
	return printEntity(h, func() {
		ctx.CLIFormatter().Success("Created habit: " + h.Name + " (" + h.ID + ")")
	})
}

func runHabitCheckIn(cmd *cobra.Command, args []string) error {
	id := args[0]
	at := now()
	if habitFlagDate != "" {
		t, err := parser.ParseTimestamp(habitFlagDate, at)
		if err != nil {
			return userError(err)
		}
		at = t
	}

	h, added, err := ctx.DB.Habits.CheckIn(cmd.Context(), id, at)
	if err != nil {
		return err
	}
	if h == nil {
		return errors.NotFound(errors.ErrHabitNotFound, id)
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCheckIn(h, added)
	}
	ctx.CLIFormatter().PrintCheckIn(h, added)
	return nil
}

func runHabitDelete(cmd *cobra.Command, args []string) error {
	deleted, err := ctx.DB.Habits.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printDeleted("habit", args[0], deleted)
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/parser"
	"github.com/manav03panchal/taskmap/internal/repo"
	"github.com/manav03panchal/taskmap/internal/timer"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// timerCmd represents the timer command.
var timerCmd = &cobra.Command{
	Use:     "timer",
	Aliases: []string{"timers", "tm"},
	Short:   "Record and review timed sessions",
	Long: `Timer records are finished timing sessions, optionally tied to a task.
Run a pomodoro, countdown or stopwatch in the terminal, or add a record
after the fact.

Examples:
  taskmap timer run --task tsk-20240313100500-ef45gh6
  taskmap timer run --mode countdown --duration 45m
  taskmap timer add --duration 1h30m --start "2 hours ago" --task tsk-20240313100500-ef45gh6
  taskmap timer --period "this week"
  taskmap timer clear --yes`,
	RunE: runTimerList,
}

// Timer flags.
var (
	timerListFlagTask    string
	timerListFlagProject string
	timerListFlagPeriod  string

	timerFlagTask     string
	timerFlagProject  string
	timerFlagNote     string
	timerFlagMode     string
	timerFlagDuration string
	timerFlagStart    string

	timerRunFlagMode      string
	timerRunFlagDuration  string
	timerRunFlagBreak     string
	timerRunFlagLongBreak string
	timerRunFlagSessions  int

	timerClearFlagYes bool
)

var timerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List timer records",
	Args:  cobra.NoArgs,
	RunE:  runTimerList,
}

var timerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a finished timer record",
	Args:  cobra.NoArgs,
	RunE:  runTimerAdd,
}

var timerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a timer in the terminal and record it",
	Long: `Run a pomodoro (default), countdown or stopwatch. Press SPACE to pause,
S to skip the current interval and Q to stop. Each finished work interval
is saved as a timer record.`,
	Args: cobra.NoArgs,
	RunE: runTimerRun,
}

var timerDeleteCmd = &cobra.Command{
	Use:     "delete RECORD_ID",
	Aliases: []string{"rm"},
	Short:   "Delete a timer record",
	Args:    cobra.ExactArgs(1),
	RunE:    runTimerDelete,
}

var timerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every timer record",
	Args:  cobra.NoArgs,
	RunE:  runTimerClear,
}

func init() {
	for _, c := range []*cobra.Command{timerCmd, timerListCmd} {
		c.Flags().StringVarP(&timerListFlagTask, "task", "t", "", "Only records of this task")
		c.Flags().StringVarP(&timerListFlagProject, "project", "p", "", "Only records of this project")
		c.Flags().StringVar(&timerListFlagPeriod, "period", "", "today, yesterday, this week, last month, ...")
		_ = c.RegisterFlagCompletionFunc("task", completeTasks)
		_ = c.RegisterFlagCompletionFunc("project", completeProjects)
	}

	modes := []string{string(model.TimerPomodoro), string(model.TimerCountdown), string(model.TimerStopwatch)}
	for _, c := range []*cobra.Command{timerAddCmd, timerRunCmd} {
		c.Flags().StringVarP(&timerFlagTask, "task", "t", "", "Task ID")
		c.Flags().StringVarP(&timerFlagProject, "project", "p", "", "Project ID")
		c.Flags().StringVarP(&timerFlagNote, "note", "n", "", "Note")
		_ = c.RegisterFlagCompletionFunc("task", completeTasks)
		_ = c.RegisterFlagCompletionFunc("project", completeProjects)
	}
	timerAddCmd.Flags().StringVarP(&timerFlagMode, "mode", "m", string(model.TimerStopwatch), "pomodoro, countdown or stopwatch")
	timerAddCmd.Flags().StringVarP(&timerFlagDuration, "duration", "d", "", "Length of the session (required)")
	timerAddCmd.Flags().StringVarP(&timerFlagStart, "start", "s", "", "When it started (default: now minus duration)")
	_ = timerAddCmd.MarkFlagRequired("duration")

	def := timer.DefaultPomodoro()
	timerRunCmd.Flags().StringVarP(&timerRunFlagMode, "mode", "m", string(model.TimerPomodoro), "pomodoro, countdown or stopwatch")
	timerRunCmd.Flags().StringVarP(&timerRunFlagDuration, "duration", "d", def.Work.String(), "Work interval or countdown length")
	timerRunCmd.Flags().StringVar(&timerRunFlagBreak, "break", def.Break.String(), "Short break length")
	timerRunCmd.Flags().StringVar(&timerRunFlagLongBreak, "long-break", def.LongBreak.String(), "Long break length")
	timerRunCmd.Flags().IntVar(&timerRunFlagSessions, "sessions", def.Sessions, "Number of pomodoro work intervals")

	for _, c := range []*cobra.Command{timerAddCmd, timerRunCmd} {
		_ = c.RegisterFlagCompletionFunc("mode", cobra.FixedCompletions(modes, cobra.ShellCompDirectiveNoFileComp))
	}

	timerClearCmd.Flags().BoolVarP(&timerClearFlagYes, "yes", "y", false, "Confirm deleting every record")

	timerCmd.AddCommand(timerListCmd, timerAddCmd, timerRunCmd, timerDeleteCmd, timerClearCmd)
	rootCmd.AddCommand(timerCmd)
}

func runTimerList(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	var (
		records []*model.TimerRecord
		err     error
	)
	switch {
	case timerListFlagTask != "":
		records, err = ctx.DB.Timers.GetByTask(c, timerListFlagTask)
	case timerListFlagProject != "":
		records, err = ctx.DB.Timers.GetByProject(c, timerListFlagProject)
	case timerListFlagPeriod != "":
		r, perr := parser.GetPeriodRange(timerListFlagPeriod, now())
		if perr != nil {
			return userError(perr)
		}
		records, err = ctx.DB.Timers.GetBetween(c, r.Start, r.End)
	default:
		records, err = ctx.DB.Timers.GetAll(c)
	}
	if err != nil {
		return err
	}
	return printItems(records, ctx.CLIFormatter().PrintTimers)
}

func validateTimerMode(mode string) error {
	switch model.TimerMode(mode) {
	case model.TimerPomodoro, model.TimerCountdown, model.TimerStopwatch:
		return nil
	}
	return errors.NewUserErrorWithField("mode", mode, "Unknown timer mode", "Use pomodoro, countdown or stopwatch.")
}

func runTimerAdd(cmd *cobra.Command, args []string) error {
	if err := validateTimerMode(timerFlagMode); err != nil {
		return err
	}
	if err := validate.Note(timerFlagNote); err != nil {
		return err
	}
	d, err := parser.ParseDuration(timerFlagDuration)
	if err != nil {
		return userError(err)
	}

	end := now()
	start := end.Add(-d)
	if timerFlagStart != "" {
		start, err = parser.ParseTimestamp(timerFlagStart, end)
		if err != nil {
			return userError(err)
		}
		end = start.Add(d)
	}

	rec := model.NewTimerRecord(model.TimerMode(timerFlagMode), start, end)
	rec.TaskID = timerFlagTask
	rec.ProjectID = timerFlagProject
	rec.Note = validate.SanitizeNote(timerFlagNote)
	if err := fillTimerProject(cmd.Context(), rec); err != nil {
		return err
	}

	rec, err = ctx.DB.Timers.Create(cmd.Context(), rec)
	if err != nil {
		return err
	}
	return printEntity(rec, func() {
		ctx.CLIFormatter().Success("Recorded " + timer.FormatClock(rec.Elapsed()) + " (" + rec.ID + ")")
	})
}

// fillTimerProject checks the record's task and takes its project when
// none was given.
func fillTimerProject(c context.Context, rec *model.TimerRecord) error {
	if rec.TaskID == "" {
		return nil
	}
	task, err := getTask(c, rec.TaskID)
	if err != nil {
		return err
	}
	if rec.ProjectID == "" {
		rec.ProjectID = task.ProjectID
	}
	return nil
}

func runTimerRun(cmd *cobra.Command, args []string) error {
	if err := validateTimerMode(timerRunFlagMode); err != nil {
		return err
	}
	cfg := timer.DefaultPomodoro()
	cfg.Mode = model.TimerMode(timerRunFlagMode)
	cfg.Sessions = timerRunFlagSessions
	cfg.TaskID = timerFlagTask
	cfg.ProjectID = timerFlagProject
	cfg.Note = validate.SanitizeNote(timerFlagNote)

	durations := []struct {
		input string
		dst   *time.Duration
	}{
		{timerRunFlagDuration, &cfg.Work},
		{timerRunFlagBreak, &cfg.Break},
		{timerRunFlagLongBreak, &cfg.LongBreak},
	}
	for _, d := range durations {
		v, err := parser.ParseDuration(d.input)
		if err != nil {
			return userError(err)
		}
		*d.dst = v
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewUserError(err.Error(), "Check --duration, --break and --sessions.")
	}

	rec := &model.TimerRecord{TaskID: cfg.TaskID, ProjectID: cfg.ProjectID}
	if err := fillTimerProject(cmd.Context(), rec); err != nil {
		return err
	}
	cfg.ProjectID = rec.ProjectID

	interactive := isatty.IsTerminal(os.Stdout.Fd()) && !ctx.IsJSON()
	display := &timer.Display{UseColor: ctx.Formatter.IsColorEnabled(), Redraw: true}
	if interactive {
		display.Writer = os.Stdout
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kb *timer.Keyboard
	if interactive {
		var err error
		if kb, err = timer.OpenKeyboard(os.Stdin); err != nil {
			return err
		}
		display.Raw = kb != nil
	}

	session := timer.NewSession(cfg, display)
	var saveErr error
	session.OnRecord = func(r *model.TimerRecord) {
		if _, err := ctx.DB.Timers.Create(cmd.Context(), r); err != nil && saveErr == nil {
			saveErr = err
			logging.ErrorContext(cmd.Context(), "timer record not saved", logging.KeyError, err)
		}
	}
	kb.Listen(runCtx, session)

	runErr := session.Run(runCtx)
	if err := kb.Close(); err != nil {
		logging.WarnContext(cmd.Context(), "terminal not restored", logging.KeyError, err)
	}
	if runErr != nil {
		return runErr
	}
	if saveErr != nil {
		return saveErr
	}

	records := session.Records()
	if ctx.IsJSON() {
		return printItems(records, func([]*model.TimerRecord) {})
	}
	if interactive {
		ctx.Formatter.Print("\033[H\033[2J")
	}
	ctx.Formatter.Println(display.Summary(repo.SumDurations(records), countCompleted(records)))
	return nil
}

func countCompleted(records []*model.TimerRecord) int {
	n := 0
	for _, r := range records {
		if r.Completed {
			n++
		}
	}
	return n
}

func runTimerDelete(cmd *cobra.Command, args []string) error {
	deleted, err := ctx.DB.Timers.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printDeleted("timer record", args[0], deleted)
}

func runTimerClear(cmd *cobra.Command, args []string) error {
	if !timerClearFlagYes {
		return errors.NewUserError("refusing to delete every timer record", "Pass --yes to confirm.")
	}
	n, err := ctx.DB.Timers.Count(cmd.Context())
	if err != nil {
		return err
	}
	if err := ctx.DB.Timers.ClearAll(cmd.Context()); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"status": "cleared", "deleted": n})
	}
	ctx.CLIFormatter().Success("Deleted " + strconv.Itoa(n) + " timer records")
	return nil
}

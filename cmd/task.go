package cmd

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/output"
	"github.com/manav03panchal/taskmap/internal/parser"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// taskCmd represents the task command.
var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks", "tsk", "t"},
	Short:   "Manage tasks",
	Long: `List, show, create, update and delete tasks. Tasks may belong to a
project and may be nested under a parent task.

Examples:
  taskmap task --project prj-20240313100000-ab12cd3
  taskmap task create "Draft chapter 1" --project prj-20240313100000-ab12cd3 --due +1w
  taskmap task create "Collect sources" --parent tsk-20240313100500-ef45gh6
  taskmap task done tsk-20240313100500-ef45gh6
  taskmap task tree --project prj-20240313100000-ab12cd3`,
	RunE: runTaskList,
}

// Task subcommand flags.
var (
	taskListFlags       listFlags
	taskListFlagProject string
	taskListFlagStatus  string
	taskListFlagParent  string
	taskListFlagTag     string
	taskListFlagNote    string

	taskFlagID          string
	taskFlagName        string
	taskFlagDescription string
	taskFlagProject     string
	taskFlagParent      string
	taskFlagStatus      string
	taskFlagPriority    int
	taskFlagDue         string
	taskFlagStart       string
	taskFlagEstimate    string
	taskFlagTags        []string
	taskFlagNotes       []string
	taskFlagArchived    bool

	taskTreeFlagProject string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:               "show TASK_ID",
	Short:             "Show a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskArgs,
	RunE:              runTaskShow,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCreate,
}

var taskUpdateCmd = &cobra.Command{
	Use:               "update TASK_ID",
	Aliases:           []string{"edit"},
	Short:             "Update a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskArgs,
	RunE:              runTaskUpdate,
}

var taskDoneCmd = &cobra.Command{
	Use:               "done TASK_ID",
	Short:             "Mark a task completed",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskArgs,
	RunE:              runTaskDone,
}

var taskDeleteCmd = &cobra.Command{
	Use:               "delete TASK_ID",
	Aliases:           []string{"rm"},
	Short:             "Delete a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskArgs,
	RunE:              runTaskDelete,
}

var taskTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show tasks nested under their parents",
	Args:  cobra.NoArgs,
	RunE:  runTaskTree,
}

func init() {
	// List flags
	for _, c := range []*cobra.Command{taskCmd, taskListCmd} {
		taskListFlags.register(c, "order")
		c.Flags().StringVarP(&taskListFlagProject, "project", "p", "", "Filter by project ID")
		c.Flags().StringVarP(&taskListFlagStatus, "status", "s", "", "Filter by status")
		c.Flags().StringVar(&taskListFlagParent, "parent", "", "Filter by parent task ID")
		c.Flags().StringVar(&taskListFlagTag, "tag", "", "Filter by tag")
		c.Flags().StringVar(&taskListFlagNote, "note", "", "Filter by reference note")
		_ = c.RegisterFlagCompletionFunc("project", completeProjects)
	}

	// Create/update flags
	for _, c := range []*cobra.Command{taskCreateCmd, taskUpdateCmd} {
		c.Flags().StringVarP(&taskFlagDescription, "description", "d", "", "Description")
		c.Flags().StringVarP(&taskFlagProject, "project", "p", "", "Project ID")
		c.Flags().StringVar(&taskFlagParent, "parent", "", "Parent task ID")
		c.Flags().IntVar(&taskFlagPriority, "priority", 0, "Priority 0-5")
		c.Flags().StringVar(&taskFlagDue, "due", "", "Due date (2024-06-30, +3d, tomorrow)")
		c.Flags().StringVar(&taskFlagStart, "start", "", "Start date")
		c.Flags().StringVarP(&taskFlagEstimate, "estimate", "e", "", "Estimated time (45m, 2h)")
		c.Flags().StringSliceVar(&taskFlagTags, "tag", nil, "Tag (repeatable)")
		c.Flags().StringSliceVar(&taskFlagNotes, "note", nil, "Reference note (repeatable)")
		_ = c.RegisterFlagCompletionFunc("project", completeProjects)
		_ = c.RegisterFlagCompletionFunc("parent", completeTasks)
	}
	taskCreateCmd.Flags().StringVar(&taskFlagID, "id", "", "Custom ID (generated if omitted)")
	taskUpdateCmd.Flags().StringVarP(&taskFlagName, "name", "n", "", "New name")
	taskUpdateCmd.Flags().StringVarP(&taskFlagStatus, "status", "s", "", "pending, in_progress, completed or cancelled")
	taskUpdateCmd.Flags().BoolVar(&taskFlagArchived, "archived", false, "Archive or unarchive (--archived=false)")

	taskTreeCmd.Flags().StringVarP(&taskTreeFlagProject, "project", "p", "", "Only tasks of this project")
	_ = taskTreeCmd.RegisterFlagCompletionFunc("project", completeProjects)

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskCreateCmd, taskUpdateCmd,
		taskDoneCmd, taskDeleteCmd, taskTreeCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	if taskListFlagStatus != "" {
		if err := validate.TaskStatus(taskListFlagStatus); err != nil {
			return err
		}
	}
	tag := validate.SanitizeTag(taskListFlagTag)

	p, err := listParams(&taskListFlags, func(t *model.Task) bool {
		switch {
		case taskListFlagProject != "" && t.ProjectID != taskListFlagProject:
			return false
		case taskListFlagStatus != "" && string(t.Status) != taskListFlagStatus:
			return false
		case taskListFlagParent != "" && t.ParentID != taskListFlagParent:
			return false
		case tag != "" && !slices.Contains(t.Tags, tag):
			return false
		case taskListFlagNote != "" && !slices.Contains(t.ReferenceNote, taskListFlagNote):
			return false
		}
		return matches(taskListFlags.search, t.Name, t.Description, t.Notes)
	})
	if err != nil {
		return err
	}

	res, err := ctx.DB.Tasks.Query(cmd.Context(), p)
	if err != nil {
		return err
	}
	return printPage(res, ctx.CLIFormatter().PrintTasks)
}

func getTask(c context.Context, id string) (*model.Task, error) {
	task, err := ctx.DB.Tasks.Get(c, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errors.NotFound(errors.ErrTaskNotFound, id)
	}
	return task, nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	task, err := getTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	spent, err := ctx.DB.Timers.TotalDuration(cmd.Context(), task.ID)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(struct {
			*model.Task
			TrackedSeconds int64 `json:"trackedSeconds"`
		}{task, int64(spent.Seconds())})
	}

	cli := ctx.CLIFormatter()
	cli.PrintTask(task)
	if spent > 0 {
		cli.Printf("  Tracked: %s\n", output.FormatDuration(spent))
	}
	if task.DueDate != 0 && !task.IsDone() {
		cli.Muted("  " + parser.FormatDueIn(model.FromMillis(task.DueDate), now()))
	}
	return nil
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	name := validate.SanitizeName(args[0])
	if err := validate.Name("task", name); err != nil {
		return err
	}
	if err := validate.ID(taskFlagID); err != nil {
		return err
	}

	task := model.NewTask(name, taskFlagProject)
	task.ID = taskFlagID
	task.Description = validate.SanitizeNote(taskFlagDescription)
	task.Priority = taskFlagPriority
	task.Tags = validate.SanitizeTags(taskFlagTags)
	task.ReferenceNote = taskFlagNotes
	if err := validate.Note(task.Description); err != nil {
		return err
	}
	if err := validate.Priority(task.Priority); err != nil {
		return err
	}
	if taskFlagDue != "" {
		ms, err := parseDateMillis("due", taskFlagDue)
		if err != nil {
			return err
		}
		task.DueDate = ms
	}
	if taskFlagStart != "" {
		ms, err := parseDateMillis("start", taskFlagStart)
		if err != nil {
			return err
		}
		task.StartDate = ms
	}
	if taskFlagEstimate != "" {
		d, err := parser.ParseDuration(taskFlagEstimate)
		if err != nil {
			return userError(err)
		}
		task.EstimatedTime = int(d.Minutes())
	}

	var parent *model.Task
	if taskFlagParent != "" {
		p, err := getTask(c, taskFlagParent)
		if err != nil {
			return err
		}
		parent = p
		task.ParentID = parent.ID
		if task.ProjectID == "" {
			task.ProjectID = parent.ProjectID
		}
	}
	if task.ProjectID != "" {
		if err := requireProject(c, task.ProjectID); err != nil {
			return err
		}
	}

	task, err := ctx.DB.Tasks.Create(c, task)
	if err != nil {
		return err
	}
	if parent != nil {
		if err := setSubTasks(c, parent.ID, append(parent.SubTasks, task.ID)); err != nil {
			return err
		}
	}

	return printEntity(task, func() {
		cli := ctx.CLIFormatter()
		cli.Success("Created task: " + task.ID)
		cli.PrintTask(task)
	})
}

func requireProject(c context.Context, id string) error {
	p, err := ctx.DB.Projects.Get(c, id)
	if err != nil {
		return err
	}
	if p == nil {
		return errors.NotFound(errors.ErrProjectNotFound, id)
	}
	return nil
}

func setSubTasks(c context.Context, parentID string, ids []string) error {
	var v any = ids
	if len(ids) == 0 {
		v = nil
	}
	_, err := ctx.DB.Tasks.Update(c, parentID, model.Record{"subTasks": v})
	return err
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	task, err := getTask(c, args[0])
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	patch := model.Record{}

	if flags.Changed("name") {
		name := validate.SanitizeName(taskFlagName)
		if err := validate.Name("task", name); err != nil {
			return err
		}
		patch["name"] = name
	}
	if flags.Changed("description") {
		desc := validate.SanitizeNote(taskFlagDescription)
		if err := validate.Note(desc); err != nil {
			return err
		}
		patch["description"] = desc
	}
	if flags.Changed("status") {
		if err := validate.TaskStatus(taskFlagStatus); err != nil {
			return err
		}
		patch["status"] = taskFlagStatus
		patch["completedAt"] = nil
		if model.TaskStatus(taskFlagStatus) == model.TaskCompleted {
			patch["completedAt"] = model.Millis(now())
		}
	}
	if flags.Changed("priority") {
		if err := validate.Priority(taskFlagPriority); err != nil {
			return err
		}
		patch["priority"] = taskFlagPriority
	}
	for flag, field := range map[string]string{"due": "dueDate", "start": "startDate"} {
		if !flags.Changed(flag) {
			continue
		}
		input, _ := flags.GetString(flag)
		if input == "" {
			patch[field] = nil
			continue
		}
		ms, err := parseDateMillis(flag, input)
		if err != nil {
			return err
		}
		patch[field] = ms
	}
	if flags.Changed("estimate") {
		d, err := parser.ParseDuration(taskFlagEstimate)
		if err != nil {
			return userError(err)
		}
		patch["estimatedTime"] = int(d.Minutes())
	}
	if flags.Changed("tag") {
		patch["tags"] = validate.SanitizeTags(taskFlagTags)
	}
	if flags.Changed("note") {
		patch["referenceNote"] = taskFlagNotes
	}
	if flags.Changed("archived") {
		patch["isArchived"] = taskFlagArchived
	}
	if flags.Changed("project") {
		if taskFlagProject != "" {
			if err := requireProject(c, taskFlagProject); err != nil {
				return err
			}
			patch["projectId"] = taskFlagProject
		} else {
			patch["projectId"] = nil
		}
	}
	if flags.Changed("parent") && taskFlagParent != task.ParentID {
		if err := reparent(c, task, taskFlagParent); err != nil {
			return err
		}
		if taskFlagParent == "" {
			patch["parentId"] = nil
		} else {
			patch["parentId"] = taskFlagParent
		}
	}

	if len(patch) == 0 {
		return noChanges("--name, --status, --due or another field flag")
	}

	if _, err := ctx.DB.Tasks.Update(c, task.ID, patch); err != nil {
		return err
	}
	task, err = getTask(c, task.ID)
	if err != nil {
		return err
	}
	return printEntity(task, func() {
		cli := ctx.CLIFormatter()
		cli.Success("Updated task: " + task.ID)
		cli.PrintTask(task)
	})
}

// reparent moves task under newParent, keeping both parents' subTasks
// lists in step. A task cannot become its own ancestor.
func reparent(c context.Context, task *model.Task, newParent string) error {
	if newParent == "" {
		return unlinkFromParent(c, task)
	}
	parent, err := getTask(c, newParent)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for p := parent; p != nil && !seen[p.ID]; {
		if p.ID == task.ID {
			return errors.NewUserErrorWithField("parent", newParent,
				"A task cannot be nested under itself or its subtasks",
				"Pick a parent outside this task's subtree.")
		}
		seen[p.ID] = true
		if p.ParentID == "" {
			break
		}
		if p, err = ctx.DB.Tasks.Get(c, p.ParentID); err != nil {
			return err
		}
	}

	if err := unlinkFromParent(c, task); err != nil {
		return err
	}
	return setSubTasks(c, parent.ID, appendUnique(parent.SubTasks, task.ID))
}

func unlinkFromParent(c context.Context, task *model.Task) error {
	if task.ParentID == "" {
		return nil
	}
	old, err := ctx.DB.Tasks.Get(c, task.ParentID)
	if err != nil || old == nil {
		return err
	}
	return setSubTasks(c, old.ID, slices.DeleteFunc(slices.Clone(old.SubTasks), func(s string) bool {
		return s == task.ID
	}))
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id := args[0]
	ok, err := ctx.DB.Tasks.SetStatus(cmd.Context(), id, model.TaskCompleted, now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound(errors.ErrTaskNotFound, id)
	}
	task, err := getTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printEntity(task, func() {
		ctx.CLIFormatter().Success("Completed task: " + task.Name)
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	id := args[0]
	task, err := ctx.DB.Tasks.Get(c, id)
	if err != nil {
		return err
	}
	if task != nil {
		if err := unlinkFromParent(c, task); err != nil {
			return err
		}
	}
	deleted, err := ctx.DB.Tasks.Delete(c, id)
	if err != nil {
		return err
	}
	return printDeleted("task", id, deleted)
}

func runTaskTree(cmd *cobra.Command, args []string) error {
	roots, err := ctx.DB.Tasks.Tree(cmd.Context(), taskTreeFlagProject)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTree(roots)
	}
	ctx.CLIFormatter().PrintTaskTree(roots)
	return nil
}

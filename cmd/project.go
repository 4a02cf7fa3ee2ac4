package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/parser"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// projectCmd represents the project command.
var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects", "proj", "prj", "pj"},
	Short:   "Manage projects",
	Long: `List, show, create, update and delete projects. Deleting a project
also deletes its tasks.

Examples:
  taskmap project
  taskmap project create "Thesis" --type learning_growth --due 2024-06-30
  taskmap project update prj-20240313100000-ab12cd3 --status paused
  taskmap project upcoming --within 2w
  taskmap project overdue`,
	RunE: runProjectList,
}

// Project subcommand flags.
var (
	projectListFlags        listFlags
	projectListFlagStatus   string
	projectListFlagCategory string

	projectFlagID          string
	projectFlagName        string
	projectFlagDescription string
	projectFlagType        string
	projectFlagStatus      string
	projectFlagColor       string
	projectFlagIcon        string
	projectFlagCategory    string
	projectFlagPriority    int
	projectFlagStart       string
	projectFlagDue         string
	projectFlagEnd         string
	projectFlagArchived    bool

	projectFlagWithin string
)

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:               "show PROJECT_ID",
	Short:             "Show a project and its tasks",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjectArgs,
	RunE:              runProjectShow,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectUpdateCmd = &cobra.Command{
	Use:               "update PROJECT_ID",
	Aliases:           []string{"edit"},
	Short:             "Update a project",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjectArgs,
	RunE:              runProjectUpdate,
}

var projectDeleteCmd = &cobra.Command{
	Use:               "delete PROJECT_ID",
	Aliases:           []string{"rm"},
	Short:             "Delete a project and all of its tasks",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjectArgs,
	RunE:              runProjectDelete,
}

var projectUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List projects due soon",
	Args:  cobra.NoArgs,
	RunE:  runProjectUpcoming,
}

var projectOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List projects past their due date",
	Args:  cobra.NoArgs,
	RunE:  runProjectOverdue,
}

func init() {
	// List flags
	for _, c := range []*cobra.Command{projectCmd, projectListCmd} {
		projectListFlags.register(c, "order")
		c.Flags().StringVarP(&projectListFlagStatus, "status", "s", "", "Filter by status")
		c.Flags().StringVarP(&projectListFlagCategory, "category", "c", "", "Filter by category")
	}

	// Create/update flags
	for _, c := range []*cobra.Command{projectCreateCmd, projectUpdateCmd} {
		c.Flags().StringVarP(&projectFlagDescription, "description", "d", "", "Description")
		c.Flags().StringVarP(&projectFlagType, "type", "t", "", "Project type, e.g. work_career")
		c.Flags().StringVar(&projectFlagColor, "color", "", "Hex color (#RRGGBB)")
		c.Flags().StringVar(&projectFlagIcon, "icon", "", "Icon")
		c.Flags().StringVarP(&projectFlagCategory, "category", "c", "", "Category")
		c.Flags().IntVarP(&projectFlagPriority, "priority", "p", 0, "Priority 0-5")
		c.Flags().StringVar(&projectFlagStart, "start", "", "Start date")
		c.Flags().StringVar(&projectFlagDue, "due", "", "Due date (2024-06-30, +2w, next friday)")
		c.Flags().StringVar(&projectFlagEnd, "end", "", "End date")
	}
	projectCreateCmd.Flags().StringVar(&projectFlagID, "id", "", "Custom ID (generated if omitted)")
	projectUpdateCmd.Flags().StringVarP(&projectFlagName, "name", "n", "", "New name")
	projectUpdateCmd.Flags().StringVarP(&projectFlagStatus, "status", "s", "", "active, paused, completed or archived")
	projectUpdateCmd.Flags().BoolVar(&projectFlagArchived, "archived", false, "Archive or unarchive (--archived=false)")

	projectUpcomingCmd.Flags().StringVarP(&projectFlagWithin, "within", "w", "30d", "How far ahead to look")

	statuses := []string{"active", "paused", "completed", "archived"}
	_ = projectListCmd.RegisterFlagCompletionFunc("status", cobra.FixedCompletions(statuses, cobra.ShellCompDirectiveNoFileComp))
	_ = projectUpdateCmd.RegisterFlagCompletionFunc("status", cobra.FixedCompletions(statuses, cobra.ShellCompDirectiveNoFileComp))

	projectCmd.AddCommand(projectListCmd, projectShowCmd, projectCreateCmd, projectUpdateCmd,
		projectDeleteCmd, projectUpcomingCmd, projectOverdueCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	if projectListFlagStatus != "" {
		if err := validate.ProjectStatus(projectListFlagStatus); err != nil {
			return err
		}
	}

	p, err := listParams(&projectListFlags, func(pr *model.Project) bool {
		if projectListFlagStatus != "" && string(pr.Status) != projectListFlagStatus {
			return false
		}
		if projectListFlagCategory != "" && pr.Category != projectListFlagCategory {
			return false
		}
		return matches(projectListFlags.search, pr.Name, pr.Description)
	})
	if err != nil {
		return err
	}

	res, err := ctx.DB.Projects.Query(cmd.Context(), p)
	if err != nil {
		return err
	}
	return printPage(res, ctx.CLIFormatter().PrintProjects)
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	project, err := ctx.DB.Projects.RefreshProgress(cmd.Context(), id)
	if err != nil {
		return err
	}
	if project == nil {
		return errors.NotFound(errors.ErrProjectNotFound, id)
	}

	tasks, err := ctx.DB.Tasks.GetByProject(cmd.Context(), id)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(struct {
			*model.Project
			Tasks []*model.Task `json:"tasks"`
		}{project, tasks})
	}

	cli := ctx.CLIFormatter()
	cli.PrintProject(project)
	if project.DueDate != 0 && project.Status != model.ProjectCompleted {
		cli.Muted("  " + parser.FormatDueIn(model.FromMillis(project.DueDate), now()))
	}
	if len(tasks) > 0 {
		cli.Println("")
		cli.Title("Tasks")
		cli.PrintTasks(tasks)
	}
	return nil
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	name := validate.SanitizeName(args[0])
	if err := validate.Name("project", name); err != nil {
		return err
	}
	if err := validate.ID(projectFlagID); err != nil {
		return err
	}

	project := model.NewProject(name, model.ProjectType(projectFlagType), projectFlagColor)
	project.ID = projectFlagID
	project.Description = validate.SanitizeNote(projectFlagDescription)
	project.Icon = projectFlagIcon
	project.Category = projectFlagCategory
	project.Priority = projectFlagPriority
	if err := applyProjectDates(project); err != nil {
		return err
	}
	if err := validateProject(project); err != nil {
		return err
	}

	project, err := ctx.DB.Projects.Create(cmd.Context(), project)
	if err != nil {
		return err
	}

	return printEntity(project, func() {
		cli := ctx.CLIFormatter()
		cli.Success("Created project: " + project.ID)
		cli.PrintProject(project)
	})
}

func applyProjectDates(p *model.Project) error {
	dates := []struct {
		field string
		input string
		dst   *int64
	}{
		{"start", projectFlagStart, &p.StartDate},
		{"due", projectFlagDue, &p.DueDate},
		{"end", projectFlagEnd, &p.EndDate},
	}
	for _, d := range dates {
		if d.input == "" {
			continue
		}
		ms, err := parseDateMillis(d.field, d.input)
		if err != nil {
			return err
		}
		*d.dst = ms
	}
	return nil
}

func validateProject(p *model.Project) error {
	if err := validate.Note(p.Description); err != nil {
		return err
	}
	if err := validate.ProjectType(string(p.Type)); err != nil {
		return err
	}
	if err := validate.HexColor(p.Color); err != nil {
		return err
	}
	return validate.Priority(p.Priority)
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]
	flags := cmd.Flags()
	patch := model.Record{}

	if flags.Changed("name") {
		name := validate.SanitizeName(projectFlagName)
		if err := validate.Name("project", name); err != nil {
			return err
		}
		patch["name"] = name
	}
	if flags.Changed("description") {
		desc := validate.SanitizeNote(projectFlagDescription)
		if err := validate.Note(desc); err != nil {
			return err
		}
		patch["description"] = desc
	}
	if flags.Changed("type") {
		if err := validate.ProjectType(projectFlagType); err != nil {
			return err
		}
		patch["type"] = projectFlagType
	}
	if flags.Changed("status") {
		if err := validate.ProjectStatus(projectFlagStatus); err != nil {
			return err
		}
		patch["status"] = projectFlagStatus
		patch["completedAt"] = nil
		if model.ProjectStatus(projectFlagStatus) == model.ProjectCompleted {
			patch["completedAt"] = model.Millis(now())
		}
	}
	if flags.Changed("color") {
		if err := validate.HexColor(projectFlagColor); err != nil {
			return err
		}
		patch["color"] = projectFlagColor
	}
	if flags.Changed("icon") {
		patch["icon"] = projectFlagIcon
	}
	if flags.Changed("category") {
		patch["category"] = projectFlagCategory
	}
	if flags.Changed("priority") {
		if err := validate.Priority(projectFlagPriority); err != nil {
			return err
		}
		patch["priority"] = projectFlagPriority
	}
	for flag, field := range map[string]string{"start": "startDate", "due": "dueDate", "end": "endDate"} {
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
	if flags.Changed("archived") {
		patch["isArchived"] = projectFlagArchived
	}

	if len(patch) == 0 {
		return noChanges("--name, --status, --due or another field flag")
	}

	ok, err := ctx.DB.Projects.Update(cmd.Context(), id, patch)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound(errors.ErrProjectNotFound, id)
	}

	project, err := ctx.DB.Projects.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printEntity(project, func() {
		cli := ctx.CLIFormatter()
		cli.Success("Updated project: " + id)
		cli.PrintProject(project)
	})
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	res, err := ctx.DB.Projects.Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCascade(id, res)
	}
	ctx.CLIFormatter().PrintCascade(id, res)
	return nil
}

func runProjectUpcoming(cmd *cobra.Command, args []string) error {
	window, err := parser.ParseDuration(projectFlagWithin)
	if err != nil {
		return userError(err)
	}
	projects, err := ctx.DB.Projects.GetUpcoming(cmd.Context(), now(), window)
	if err != nil {
		return err
	}
	return printItems(projects, ctx.CLIFormatter().PrintProjects)
}

func runProjectOverdue(cmd *cobra.Command, args []string) error {
	projects, err := ctx.DB.Projects.GetOverdue(cmd.Context(), now())
	if err != nil {
		return err
	}
	return printItems(projects, ctx.CLIFormatter().PrintProjects)
}

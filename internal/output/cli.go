package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/taskmap/internal/metrics"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/repo"
	"github.com/manav03panchal/taskmap/internal/storage"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// maxCell caps free-text table cells.
const maxCell = 40

// Styles for CLI output.
var (
	// Colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#10B981") // Green
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorWarning   = lipgloss.Color("#F59E0B") // Yellow
	colorError     = lipgloss.Color("#EF4444") // Red
	colorSuccess   = lipgloss.Color("#10B981") // Green

	// Styles
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleProject = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleTask = lipgloss.NewStyle().
			Foreground(colorSecondary)
)

// statusStyles colors project and task statuses.
var statusStyles = map[string]lipgloss.Style{
	string(model.ProjectActive):    styleSuccess,
	string(model.ProjectPaused):    styleWarning,
	string(model.ProjectCompleted): styleMuted,
	string(model.ProjectArchived):  styleMuted,
	string(model.TaskPending):      styleWarning,
	string(model.TaskInProgress):   styleSuccess,
	string(model.TaskCancelled):    styleError,
}

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// ProjectName formats a project name.
func (c *CLIFormatter) ProjectName(name string) string {
	return c.render(styleProject, name)
}

// TaskName formats a task name.
func (c *CLIFormatter) TaskName(name string) string {
	return c.render(styleTask, name)
}

// Status formats a project or task status.
func (c *CLIFormatter) Status(status string) string {
	if style, ok := statusStyles[status]; ok {
		return c.render(style, status)
	}
	return status
}

// ProgressBar creates a simple progress bar.
func ProgressBar(percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filled := int(float64(width) * percentage / 100)
	empty := width - filled

	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

// TableRow is one row of a table.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple table. Plain output drops the separator line.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && len(col) > widths[i] {
				widths[i] = len(col)
			}
		}
	}

	line := func(cols []string) string {
		var sb strings.Builder
		for i, col := range cols {
			if i < len(widths) {
				fmt.Fprintf(&sb, "%-*s  ", widths[i], col)
			}
		}
		return strings.TrimRight(sb.String(), " ")
	}

	c.Println(c.render(styleBold, line(headers)))
	if c.Format != FormatPlain {
		seps := make([]string, len(widths))
		for i, w := range widths {
			seps[i] = strings.Repeat("─", w)
		}
		c.Println(line(seps))
	}
	for _, row := range rows {
		c.Println(line(row.Columns))
	}
}

func priority(p int) string {
	if p == 0 {
		return "-"
	}
	return strconv.Itoa(p)
}

// PrintProjects prints projects as a table.
func (c *CLIFormatter) PrintProjects(projects []*model.Project) {
	if len(projects) == 0 {
		c.Muted("No projects.")
		return
	}
	rows := make([]TableRow, len(projects))
	for i, p := range projects {
		rows[i] = TableRow{Columns: []string{
			p.ID,
			validate.TruncateString(p.Name, maxCell),
			string(p.Status),
			priority(p.Priority),
			FormatDateMillis(p.DueDate),
			fmt.Sprintf("%d/%d", p.CompletedTaskCount, p.TaskCount),
		}}
	}
	c.PrintTable([]string{"ID", "NAME", "STATUS", "PRI", "DUE", "DONE"}, rows)
}

// PrintProject prints one project in detail.
func (c *CLIFormatter) PrintProject(p *model.Project) {
	c.Printf("%s %s\n", c.ProjectName(p.Name), c.render(styleMuted, "("+p.ID+")"))
	c.Printf("  Status: %s\n", c.Status(string(p.Status)))
	if p.Description != "" {
		c.Printf("  Description: %s\n", p.Description)
	}
	if p.Type != "" {
		c.Printf("  Type: %s\n", p.Type)
	}
	if p.Category != "" {
		c.Printf("  Category: %s\n", p.Category)
	}
	c.Printf("  Priority: %s\n", priority(p.Priority))
	if p.StartDate != 0 {
		c.Printf("  Start: %s\n", FormatDateMillis(p.StartDate))
	}
	if p.DueDate != 0 {
		c.Printf("  Due: %s\n", FormatDateMillis(p.DueDate))
	}
	c.Printf("  Progress: %s %.0f%% (%d/%d tasks)\n",
		ProgressBar(p.CompletionRate, 20), p.CompletionRate, p.CompletedTaskCount, p.TaskCount)
	c.Printf("  Created: %s\n", FormatMillis(p.CreatedAt))
	c.Printf("  Updated: %s\n", FormatMillis(p.UpdatedAt))
}

// PrintTasks prints tasks as a table.
func (c *CLIFormatter) PrintTasks(tasks []*model.Task) {
	if len(tasks) == 0 {
		c.Muted("No tasks.")
		return
	}
	rows := make([]TableRow, len(tasks))
	for i, t := range tasks {
		rows[i] = TableRow{Columns: []string{
			t.ID,
			validate.TruncateString(t.Name, maxCell),
			string(t.Status),
			priority(t.Priority),
			FormatDateMillis(t.DueDate),
			t.ProjectID,
		}}
	}
	c.PrintTable([]string{"ID", "NAME", "STATUS", "PRI", "DUE", "PROJECT"}, rows)
}

// PrintTask prints one task in detail.
func (c *CLIFormatter) PrintTask(t *model.Task) {
	c.Printf("%s %s\n", c.TaskName(t.Name), c.render(styleMuted, "("+t.ID+")"))
	c.Printf("  Status: %s\n", c.Status(string(t.Status)))
	if t.ProjectID != "" {
		c.Printf("  Project: %s\n", t.ProjectID)
	}
	if t.ParentID != "" {
		c.Printf("  Parent: %s\n", t.ParentID)
	}
	c.Printf("  Priority: %s\n", priority(t.Priority))
	if t.DueDate != 0 {
		c.Printf("  Due: %s\n", FormatDateMillis(t.DueDate))
	}
	if t.CompletedAt != 0 {
		c.Printf("  Completed: %s\n", FormatMillis(t.CompletedAt))
	}
	if len(t.Tags) > 0 {
		c.Printf("  Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if len(t.ReferenceNote) > 0 {
		c.Printf("  Notes: %s\n", strings.Join(t.ReferenceNote, ", "))
	}
	if t.Description != "" {
		c.Printf("  Description: %s\n", t.Description)
	}
}

// PrintTaskTree prints a task forest with box-drawing guides.
func (c *CLIFormatter) PrintTaskTree(roots []*model.TaskNode) {
	if len(roots) == 0 {
		c.Muted("No tasks.")
		return
	}
	var walk func(nodes []*model.TaskNode, prefix string)
	walk = func(nodes []*model.TaskNode, prefix string) {
		for i, n := range nodes {
			branch, next := "├── ", "│   "
			if i == len(nodes)-1 {
				branch, next = "└── ", "    "
			}
			c.Printf("%s%s%s [%s] %s\n", prefix, branch, c.TaskName(n.Name),
				c.Status(string(n.Status)), c.render(styleMuted, n.ID))
			walk(n.Children, prefix+next)
		}
	}
	walk(roots, "")
}

// PrintCategories prints categories as a table.
func (c *CLIFormatter) PrintCategories(categories []*model.Category) {
	if len(categories) == 0 {
		c.Muted("No categories.")
		return
	}
	rows := make([]TableRow, len(categories))
	for i, cat := range categories {
		rows[i] = TableRow{Columns: []string{cat.ID, cat.Name, cat.Type, cat.Color}}
	}
	c.PrintTable([]string{"ID", "NAME", "TYPE", "COLOR"}, rows)
}

// PrintTags prints tags as a table.
func (c *CLIFormatter) PrintTags(tags []*model.Tag) {
	if len(tags) == 0 {
		c.Muted("No tags.")
		return
	}
	rows := make([]TableRow, len(tags))
	for i, t := range tags {
		rows[i] = TableRow{Columns: []string{t.ID, t.Name, t.Color}}
	}
	c.PrintTable([]string{"ID", "NAME", "COLOR"}, rows)
}

// PrintSettings prints settings as a table.
func (c *CLIFormatter) PrintSettings(settings []*model.Setting) {
	if len(settings) == 0 {
		c.Muted("No settings.")
		return
	}
	rows := make([]TableRow, len(settings))
	for i, s := range settings {
		rows[i] = TableRow{Columns: []string{s.Key, validate.TruncateString(fmt.Sprint(s.Value), maxCell), s.Category}}
	}
	c.PrintTable([]string{"KEY", "VALUE", "CATEGORY"}, rows)
}

// PrintTimers prints timer records followed by their total duration.
func (c *CLIFormatter) PrintTimers(records []*model.TimerRecord) {
	if len(records) == 0 {
		c.Muted("No timer records.")
		return
	}
	rows := make([]TableRow, len(records))
	for i, r := range records {
		rows[i] = TableRow{Columns: []string{
			r.ID,
			FormatMillis(r.StartTime),
			FormatDuration(r.Elapsed()),
			string(r.Mode),
			r.TaskID,
			validate.TruncateString(r.Note, maxCell),
		}}
	}
	c.PrintTable([]string{"ID", "START", "DURATION", "MODE", "TASK", "NOTE"}, rows)
	c.Printf("\nTotal: %s\n", FormatDuration(repo.SumDurations(records)))
}

// PrintHabits prints habits as a table.
func (c *CLIFormatter) PrintHabits(habits []*model.Habit) {
	if len(habits) == 0 {
		c.Muted("No habits.")
		return
	}
	rows := make([]TableRow, len(habits))
	for i, h := range habits {
		last := h.LastCheckIn
		if last == "" {
			last = "-"
		}
		rows[i] = TableRow{Columns: []string{
			h.ID,
			validate.TruncateString(h.Name, maxCell),
			string(h.Frequency),
			strconv.Itoa(h.CurrentStreak),
			strconv.Itoa(h.LongestStreak),
			last,
		}}
	}
	c.PrintTable([]string{"ID", "NAME", "FREQ", "STREAK", "BEST", "LAST"}, rows)
}

// PrintCheckIn reports the outcome of a habit check-in.
func (c *CLIFormatter) PrintCheckIn(h *model.Habit, added bool) {
	if !added {
		c.Warning(fmt.Sprintf("%s already checked in on %s", h.Name, h.LastCheckIn))
		return
	}
	c.Success(fmt.Sprintf("Checked in %s (streak %d, best %d)", h.Name, h.CurrentStreak, h.LongestStreak))
}

// PrintCascade reports a project deletion and the tasks removed with it.
func (c *CLIFormatter) PrintCascade(id string, res repo.CascadeResult) {
	if res.Deleted {
		c.Success("Deleted project " + id)
	} else {
		c.Warning("Project " + id + " did not exist")
	}
	c.Printf("  Tasks deleted: %d\n", res.Tasks.Succeeded)
	if len(res.Tasks.Failed) > 0 {
		c.Error("Tasks not deleted: " + strings.Join(res.Tasks.Failed, ", "))
	}
}

// PrintBatchResults prints per-store batch outcomes in store order.
func (c *CLIFormatter) PrintBatchResults(results map[string]storage.BatchResult) {
	stores := make([]string, 0, len(results))
	for name := range results {
		stores = append(stores, name)
	}
	sort.Strings(stores)

	rows := make([]TableRow, len(stores))
	for i, name := range stores {
		res := results[name]
		status := "ok"
		if !res.OK {
			status = "incomplete"
		}
		rows[i] = TableRow{Columns: []string{
			name,
			strconv.Itoa(res.Succeeded),
			strconv.Itoa(len(res.Failed)),
			status,
		}}
	}
	c.PrintTable([]string{"STORE", "IMPORTED", "FAILED", "STATUS"}, rows)
}

// PrintStats prints per-store record counts and, when present, operation
// metrics.
func (c *CLIFormatter) PrintStats(stats repo.Stats, snap *metrics.Snapshot) {
	stores := make([]string, 0, len(stats.PerStore))
	for name := range stats.PerStore {
		stores = append(stores, name)
	}
	sort.Strings(stores)

	c.Title("Records")
	rows := make([]TableRow, 0, len(stores)+1)
	for _, name := range stores {
		rows = append(rows, TableRow{Columns: []string{name, strconv.Itoa(stats.PerStore[name])}})
	}
	rows = append(rows, TableRow{Columns: []string{"total", strconv.Itoa(stats.Total)}})
	c.PrintTable([]string{"STORE", "COUNT"}, rows)

	if snap == nil {
		return
	}
	c.Println()
	c.Title("Operations")
	opRows := make([]TableRow, 0, len(snap.Operations))
	for _, name := range snap.OperationNames() {
		opRows = append(opRows, TableRow{Columns: []string{name, strconv.FormatUint(snap.Operations[name], 10)}})
	}
	c.PrintTable([]string{"OPERATION", "COUNT"}, opRows)
	c.Printf("Errors: %d\n", snap.ErrorsTotal)
	if snap.LastError != "" {
		c.Printf("Last error: %s\n", snap.LastError)
	}
}

// PrintBackendStatus prints backend diagnostics.
func (c *CLIFormatter) PrintBackendStatus(st storage.Status) {
	c.Printf("Backend: %s\n", c.render(styleBold, st.Backend))
	if st.Location != "" {
		c.Printf("  Location: %s\n", st.Location)
	}
	c.Printf("  Initialized: %t\n", st.Initialized)
	c.Printf("  Closed: %t\n", st.Closed)
	if st.Pending {
		c.Printf("  Pending writes: %t\n", st.Pending)
	}
	if st.Error != "" {
		c.Error(st.Error)
	}
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
)

// =============================================================================
// Harness
// =============================================================================

// cli runs the root command in-process against a private data directory.
type cli struct {
	t       *testing.T
	backend string
	dataDir string
	config  string
}

func newCLI(t *testing.T, backend string) *cli {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "cache_dir: " + filepath.Join(dir, "cache") + "\n" +
		"snapshot_delay: 10ms\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return &cli{t: t, backend: backend, dataDir: filepath.Join(dir, "data"), config: cfgPath}
}

// resetFlags puts every flag back to its default. Cobra keeps flag values
// and their Changed state between executions of the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--backend", c.backend,
		"--data-dir", c.dataDir,
		"--config", c.config,
		"--format", "json",
		"--color-mode", "never",
	}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(c.t, closeRuntime())
	return out.String(), err
}

// must runs args and decodes the JSON output into v.
func (c *cli) must(v any, args ...string) {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	if v != nil {
		require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
	}
}

// =============================================================================
// Projects and tasks
// =============================================================================

func TestProjectTaskLifecycle(t *testing.T) {
	c := newCLI(t, "json")

	var project model.Project
	c.must(&project, "project", "create", "Website", "--type", "work_career", "--priority", "3")
	require.NotEmpty(t, project.ID)
	assert.Equal(t, "Website", project.Name)

	var parent, child model.Task
	c.must(&parent, "task", "create", "Design", "--project", project.ID)
	c.must(&child, "task", "create", "Wireframes", "--project", project.ID, "--parent", parent.ID, "--tag", "UX")
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, []string{"ux"}, child.Tags)

	var tree struct {
		Tree []*model.TaskNode `json:"tree"`
	}
	c.must(&tree, "task", "tree", "--project", project.ID)
	require.Len(t, tree.Tree, 1)
	assert.Equal(t, parent.ID, tree.Tree[0].ID)
	require.Len(t, tree.Tree[0].Children, 1)
	assert.Equal(t, child.ID, tree.Tree[0].Children[0].ID)

	var done model.Task
	c.must(&done, "task", "done", child.ID)
	assert.Equal(t, model.TaskCompleted, done.Status)
	assert.NotZero(t, done.CompletedAt)

	var cascade struct {
		Deleted bool `json:"deleted"`
		Tasks   struct {
			Succeeded int `json:"succeeded"`
		} `json:"tasks"`
	}
	c.must(&cascade, "project", "delete", project.ID)
	assert.True(t, cascade.Deleted)
	assert.Equal(t, 2, cascade.Tasks.Succeeded)

	var page struct {
		Data  []*model.Task `json:"data"`
		Total int           `json:"total"`
	}
	c.must(&page, "task", "list")
	assert.Zero(t, page.Total)
}

func TestTaskCreateUnknownProject(t *testing.T) {
	c := newCLI(t, "json")

	_, err := c.run("task", "create", "Orphan", "--project", "prj-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProjectNotFound))
}

func TestTaskParentCycleRejected(t *testing.T) {
	c := newCLI(t, "json")

	var a, b model.Task
	c.must(&a, "task", "create", "A")
	c.must(&b, "task", "create", "B", "--parent", a.ID)

	_, err := c.run("task", "update", a.ID, "--parent", b.ID)
	require.Error(t, err)
}

func TestProjectUpdateNoFlags(t *testing.T) {
	c := newCLI(t, "json")

	var p model.Project
	c.must(&p, "project", "create", "Idle")

	_, err := c.run("project", "update", p.ID)
	require.Error(t, err)
	var ue *errors.UserError
	assert.True(t, errors.As(err, &ue))
}

func TestEntityColorWithColorMode(t *testing.T) {
	c := newCLI(t, "json")

	var p model.Project
	c.must(&p, "project", "create", "Palette", "--color", "#ff0000", "--color-mode", "always")
	assert.Equal(t, "#ff0000", p.Color)

	var updated model.Project
	c.must(&updated, "project", "update", p.ID, "--color", "#00ff00", "--color-mode", "never")
	assert.Equal(t, "#00ff00", updated.Color)

	var h model.Habit
	c.must(&h, "habit", "create", "Stretch", "--color", "#0000ff")
	assert.Equal(t, "#0000ff", h.Color)

	_, err := c.run("project", "create", "Loud", "--color-mode", "neon")
	require.Error(t, err)
	var ue *errors.UserError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "color-mode", ue.Field)
}

// =============================================================================
// Settings, habits, timers
// =============================================================================

func TestSettingValues(t *testing.T) {
	c := newCLI(t, "json")

	c.must(nil, "setting", "set", "theme", "dark", "--category", "ui")
	c.must(nil, "setting", "set", "pomodoro.work", "25")

	var theme model.Setting
	c.must(&theme, "setting", "get", "theme")
	assert.Equal(t, "dark", theme.Value)
	assert.Equal(t, "ui", theme.Category)

	var work model.Setting
	c.must(&work, "setting", "get", "pomodoro.work")
	assert.Equal(t, float64(25), work.Value)

	var list struct {
		Count int `json:"count"`
	}
	c.must(&list, "setting", "list", "--category", "ui")
	assert.Equal(t, 1, list.Count)
}

func TestHabitCheckInOncePerDay(t *testing.T) {
	c := newCLI(t, "json")

	var h model.Habit
	c.must(&h, "habit", "create", "Read", "--target", "5")

	var first, second struct {
		Added bool         `json:"added"`
		Habit *model.Habit `json:"habit"`
	}
	c.must(&first, "habit", "checkin", h.ID)
	c.must(&second, "habit", "checkin", h.ID)
	assert.True(t, first.Added)
	assert.False(t, second.Added)
	assert.Equal(t, 1, second.Habit.TotalCheckIns)
}

func TestTimerAddAndClear(t *testing.T) {
	c := newCLI(t, "json")

	var p model.Project
	var task model.Task
	c.must(&p, "project", "create", "Focus")
	c.must(&task, "task", "create", "Write", "--project", p.ID)

	var rec model.TimerRecord
	c.must(&rec, "timer", "add", "--duration", "25m", "--task", task.ID, "--mode", "pomodoro")
	assert.Equal(t, int64(1500), rec.Duration)
	assert.Equal(t, p.ID, rec.ProjectID, "project is taken from the task")

	var list struct {
		Count int `json:"count"`
	}
	c.must(&list, "timer", "list", "--task", task.ID)
	assert.Equal(t, 1, list.Count)

	_, err := c.run("timer", "clear")
	require.Error(t, err, "clear needs --yes")

	c.must(nil, "timer", "clear", "--yes")
	c.must(&list, "timer", "list")
	assert.Zero(t, list.Count)
}

func TestTimerAddInvalidMode(t *testing.T) {
	c := newCLI(t, "json")

	_, err := c.run("timer", "add", "--duration", "5m", "--mode", "egg")
	require.Error(t, err)
}

// =============================================================================
// Export, import, stats
// =============================================================================

func TestExportImportRoundTrip(t *testing.T) {
	src := newCLI(t, "json")
	c := src

	var p model.Project
	c.must(&p, "project", "create", "Archive me")
	c.must(nil, "task", "create", "One", "--project", p.ID)
	c.must(nil, "tag", "create", "Urgent", "--color", "#FF0000")

	file := filepath.Join(t.TempDir(), "snap.json")
	_, err := c.run("export", "-o", file)
	require.NoError(t, err)

	dst := newCLI(t, "sqlite")
	var imp struct {
		Status string `json:"status"`
	}
	dst.must(&imp, "import", file)
	assert.Equal(t, "ok", imp.Status)

	var stats struct {
		Records struct {
			PerStore map[string]int `json:"perStore"`
			Total    int            `json:"total"`
		} `json:"records"`
	}
	dst.must(&stats, "stats")
	assert.Equal(t, 3, stats.Records.Total)
	assert.Equal(t, 1, stats.Records.PerStore[model.StoreTasks])
	assert.Equal(t, 1, stats.Records.PerStore[model.StoreTags])
}

func TestExportSingleStoreCSV(t *testing.T) {
	c := newCLI(t, "json")
	c.must(nil, "category", "create", "Work", "--type", "project")

	dir := t.TempDir()
	_, err := c.run("export", "--store", model.StoreCategories, "--csv", "-o", dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".csv", filepath.Ext(entries[0].Name()))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("id,")), string(data))
	assert.Contains(t, string(data), "Work")
}

func TestExportCSVNeedsStore(t *testing.T) {
	c := newCLI(t, "json")
	_, err := c.run("export", "--csv")
	require.Error(t, err)
}

func TestStatsMetrics(t *testing.T) {
	c := newCLI(t, "json")

	var stats struct {
		Metrics *struct {
			Operations map[string]uint64 `json:"operations"`
		} `json:"metrics"`
	}
	c.must(&stats, "stats", "--metrics")
	require.NotNil(t, stats.Metrics)
	assert.NotEmpty(t, stats.Metrics.Operations)
}

// =============================================================================
// Backends
// =============================================================================

func TestDataPersistsAcrossRuns(t *testing.T) {
	for _, backend := range []string{"badger", "sqlite", "json"} {
		t.Run(backend, func(t *testing.T) {
			c := newCLI(t, backend)

			var p model.Project
			c.must(&p, "project", "create", "Durable")

			var page struct {
				Data []*model.Project `json:"data"`
			}
			c.must(&page, "project", "list")
			require.Len(t, page.Data, 1)
			assert.Equal(t, p.ID, page.Data[0].ID)

			var st struct {
				Status struct {
					Backend string `json:"backend"`
				} `json:"status"`
			}
			c.must(&st, "status")
			assert.Equal(t, backend, st.Status.Backend)
		})
	}
}

func TestUnknownBackend(t *testing.T) {
	c := newCLI(t, "cassandra")
	_, err := c.run("project", "list")
	require.Error(t, err)
}

func TestVersionSkipsRuntime(t *testing.T) {
	c := newCLI(t, "cassandra")
	out, err := c.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskmap")
}

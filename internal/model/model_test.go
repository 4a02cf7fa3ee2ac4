package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Record Tests
// =============================================================================

func TestRecordCloneIsDeep(t *testing.T) {
	orig := Record{
		"id":   "a",
		"tags": []any{"x", "y"},
		"meta": map[string]any{"n": 1.0, "inner": []any{map[string]any{"k": "v"}}},
	}

	clone := orig.Clone()
	assert.Equal(t, orig, clone)

	clone["tags"].([]any)[0] = "changed"
	clone["meta"].(map[string]any)["n"] = 2.0
	clone["meta"].(map[string]any)["inner"].([]any)[0].(map[string]any)["k"] = "changed"

	assert.Equal(t, "x", orig["tags"].([]any)[0])
	assert.Equal(t, 1.0, orig["meta"].(map[string]any)["n"])
	assert.Equal(t, "v", orig["meta"].(map[string]any)["inner"].([]any)[0].(map[string]any)["k"])
}

func TestRecordCloneNil(t *testing.T) {
	var r Record
	assert.Nil(t, r.Clone())
}

func TestRecordMerge(t *testing.T) {
	orig := Record{"id": "a", "name": "old", "n": 1.0}
	merged := orig.Merge(Record{"name": "new", "extra": true})

	assert.Equal(t, Record{"id": "a", "name": "new", "n": 1.0, "extra": true}, merged)
	assert.Equal(t, "old", orig["name"], "merge must not mutate the receiver")
}

func TestRecordString(t *testing.T) {
	r := Record{"s": "text", "n": 1.0}
	assert.Equal(t, "text", r.String("s"))
	assert.Equal(t, "", r.String("n"))
	assert.Equal(t, "", r.String("missing"))
}

func TestNormalize(t *testing.T) {
	r, err := Normalize(Record{"n": 3, "list": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, r["n"])
	assert.Equal(t, []any{"a"}, r["list"])
}

func TestDecodeRecordRejectsNonObject(t *testing.T) {
	_, err := DecodeRecord([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeRecord([]byte(`null`))
	assert.Error(t, err)
}

func TestEntityRecordRoundTrip(t *testing.T) {
	task := NewTask("Write report", "prj-1")
	task.ID = "tsk-1"
	task.ReferenceNote = []string{"note-1"}

	rec, err := ToRecord(task)
	require.NoError(t, err)
	assert.Equal(t, "tsk-1", rec["id"])
	assert.Equal(t, "prj-1", rec["projectId"])
	assert.NotContains(t, rec, "dueDate", "zero due date must be omitted so it stays out of the index")

	back, err := FromRecord[Task](rec)
	require.NoError(t, err)
	assert.Equal(t, task, back)
}

// =============================================================================
// Schema Tests
// =============================================================================

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, SchemaName, s.Name)
	assert.Equal(t, SchemaVersion, s.Version)
	assert.Equal(t, []string{
		StoreProjects, StoreTasks, StoreCategories, StoreTags,
		StoreSettings, StoreTimerRecords, StoreHabits,
	}, s.StoreNames())

	settings, ok := s.Store(StoreSettings)
	require.True(t, ok)
	assert.Equal(t, "key", settings.KeyPath)

	tasks, ok := s.Store(StoreTasks)
	require.True(t, ok)
	idx, ok := tasks.Index("projectId")
	require.True(t, ok)
	assert.Equal(t, "projectId", idx.KeyPath)

	_, ok = tasks.Index("nope")
	assert.False(t, ok)
	_, ok = s.Store("nope")
	assert.False(t, ok)
}

// =============================================================================
// Entity Tests
// =============================================================================

func TestProjectSetGetKey(t *testing.T) {
	p := &Project{}
	p.SetKey("prj-abc")
	assert.Equal(t, "prj-abc", p.GetKey())
}

func TestNewProject(t *testing.T) {
	p := NewProject("Garden", ProjectFamilyLife, "#00FF00")
	assert.Equal(t, ProjectActive, p.Status)
	assert.NotZero(t, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestProjectUpdateProgress(t *testing.T) {
	p := &Project{}
	p.UpdateProgress([]*Task{
		{Status: TaskCompleted},
		{Status: TaskPending},
		{Status: TaskCompleted},
		{Status: TaskCancelled},
	})
	assert.Equal(t, 4, p.TaskCount)
	assert.Equal(t, 2, p.CompletedTaskCount)
	assert.InDelta(t, 50.0, p.CompletionRate, 0.001)

	p.UpdateProgress(nil)
	assert.Zero(t, p.CompletionRate)
}

func TestValidateColor(t *testing.T) {
	assert.True(t, ValidateColor(""))
	assert.True(t, ValidateColor("#FF5733"))
	assert.False(t, ValidateColor("FF5733"))
	assert.False(t, ValidateColor("#FFF"))
}

func TestStatusValidators(t *testing.T) {
	assert.True(t, ValidProjectStatus("paused"))
	assert.False(t, ValidProjectStatus("sleeping"))
	assert.True(t, ValidTaskStatus("in_progress"))
	assert.False(t, ValidTaskStatus("done"))
	assert.True(t, ValidHabitFrequency("weekly"))
	assert.False(t, ValidHabitFrequency("hourly"))
}

func TestNewTimerRecord(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	r := NewTimerRecord(TimerPomodoro, start, start.Add(25*time.Minute))

	assert.Equal(t, int64(25*60), r.Duration)
	assert.Equal(t, 25*time.Minute, r.Elapsed())
	assert.Equal(t, Millis(start), r.StartTime)
	assert.True(t, r.Completed)
}

// =============================================================================
// Habit Tests
// =============================================================================

func day(d int) time.Time {
	return time.Date(2024, 3, d, 8, 0, 0, 0, time.Local)
}

func TestHabitDailyStreak(t *testing.T) {
	h := NewHabit("Read", HabitDaily, 7)

	assert.True(t, h.CheckIn(day(1)))
	assert.True(t, h.CheckIn(day(2)))
	assert.True(t, h.CheckIn(day(3)))
	assert.Equal(t, 3, h.CurrentStreak)
	assert.Equal(t, 3, h.LongestStreak)

	assert.False(t, h.CheckIn(day(3).Add(time.Hour)), "second check-in on the same day is ignored")
	assert.Equal(t, 3, h.TotalCheckIns)

	assert.True(t, h.CheckIn(day(5)))
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 3, h.LongestStreak)
	assert.Equal(t, "2024-03-05", h.LastCheckIn)
	assert.Len(t, h.CheckInHistory, 4)
}

func TestHabitWeeklyStreak(t *testing.T) {
	h := NewHabit("Run", HabitWeekly, 3)

	// 2024-03-04 is a Monday.
	assert.True(t, h.CheckIn(day(4)))
	assert.True(t, h.CheckIn(day(6)))
	assert.Equal(t, 1, h.CurrentStreak, "same week does not extend the streak")

	assert.True(t, h.CheckIn(day(12)))
	assert.Equal(t, 2, h.CurrentStreak)

	assert.True(t, h.CheckIn(day(28)))
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 2, h.LongestStreak)
}

func TestHabitMonthlyStreak(t *testing.T) {
	h := NewHabit("Budget", HabitMonthly, 1)

	assert.True(t, h.CheckIn(time.Date(2024, 1, 31, 9, 0, 0, 0, time.Local)))
	assert.True(t, h.CheckIn(time.Date(2024, 2, 29, 9, 0, 0, 0, time.Local)))
	assert.True(t, h.CheckIn(time.Date(2024, 3, 31, 9, 0, 0, 0, time.Local)))
	assert.Equal(t, 3, h.CurrentStreak)
}

// =============================================================================
// Task Tree Tests
// =============================================================================

func ids(nodes []*TaskNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestBuildTaskTreeDanglingParent(t *testing.T) {
	roots := BuildTaskTree([]*Task{
		{ID: "a"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "zzz"},
	})

	require.Equal(t, []string{"a", "c"}, ids(roots))
	assert.Equal(t, []string{"b"}, ids(roots[0].Children))
	assert.Empty(t, roots[0].Children[0].Children)
	assert.NotNil(t, roots[1].Children)
	assert.Empty(t, roots[1].Children)
}

func TestBuildTaskTreeNested(t *testing.T) {
	roots := BuildTaskTree([]*Task{
		{ID: "c", ParentID: "b"},
		{ID: "b", ParentID: "a"},
		{ID: "a"},
		{ID: "d", ParentID: "a"},
	})

	require.Equal(t, []string{"a"}, ids(roots))
	assert.Equal(t, []string{"b", "d"}, ids(roots[0].Children))
	assert.Equal(t, []string{"c"}, ids(roots[0].Children[0].Children))
}

func TestBuildTaskTreeSelfParent(t *testing.T) {
	roots := BuildTaskTree([]*Task{{ID: "a", ParentID: "a"}})
	assert.Equal(t, []string{"a"}, ids(roots))
	assert.Empty(t, roots[0].Children)
}

func TestBuildTaskTreeCycle(t *testing.T) {
	roots := BuildTaskTree([]*Task{
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
		{ID: "r"},
	})

	require.Equal(t, []string{"r", "x"}, ids(roots))
	assert.Equal(t, []string{"y"}, ids(roots[1].Children))
	assert.Empty(t, roots[1].Children[0].Children)
	assert.Len(t, Flatten(roots), 3)
}

func TestBuildTaskTreeEmpty(t *testing.T) {
	roots := BuildTaskTree(nil)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
}

func TestTaskNodeJSON(t *testing.T) {
	roots := BuildTaskTree([]*Task{{ID: "a", Name: "A"}, {ID: "b", ParentID: "a"}})

	data, err := json.Marshal(roots)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a", decoded[0]["id"])
	sub := decoded[0]["subTasks"].([]any)
	require.Len(t, sub, 1)
	assert.Equal(t, "b", sub[0].(map[string]any)["id"])
}

package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
)

// completion is one shell completion candidate.
type completion struct {
	value string
	desc  string
}

// completeFrom opens the store when no command has, lists candidates and
// filters them by prefix. Failures complete nothing.
func completeFrom(cmd *cobra.Command, toComplete string, list func(context.Context) ([]completion, error)) ([]string, cobra.ShellCompDirective) {
	if ctx == nil {
		if err := openRuntime(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer closeRuntime()
	}

	c := cmd.Context()
	if c == nil {
		c = context.Background()
	}
	items, err := list(c)
	if err != nil {
		logging.DebugContext(c, "completion failed", logging.KeyError, err)
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, it := range items {
		if !strings.HasPrefix(it.value, toComplete) {
			continue
		}
		if it.desc != "" {
			out = append(out, it.value+"\t"+it.desc)
		} else {
			out = append(out, it.value)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// firstArg limits completion to the first positional argument.
func firstArg(fn cobra.CompletionFunc) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return fn(cmd, args, toComplete)
	}
}

// completeProjects completes project ids.
func completeProjects(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		projects, err := ctx.DB.Projects.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(projects))
		for _, p := range projects {
			out = append(out, completion{p.ID, p.Name})
		}
		return out, nil
	})
}

// completeTasks completes task ids.
func completeTasks(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		tasks, err := ctx.DB.Tasks.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, completion{t.ID, t.Name})
		}
		return out, nil
	})
}

func completeCategories(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		cats, err := ctx.DB.Categories.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(cats))
		for _, cat := range cats {
			out = append(out, completion{cat.ID, cat.Name})
		}
		return out, nil
	})
}

func completeTags(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		tags, err := ctx.DB.Tags.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(tags))
		for _, t := range tags {
			out = append(out, completion{t.ID, t.Name})
		}
		return out, nil
	})
}

func completeSettings(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		settings, err := ctx.DB.Settings.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(settings))
		for _, s := range settings {
			out = append(out, completion{s.Key, s.Category})
		}
		return out, nil
	})
}

func completeHabits(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFrom(cmd, toComplete, func(c context.Context) ([]completion, error) {
		habits, err := ctx.DB.Habits.GetAll(c)
		if err != nil {
			return nil, err
		}
		out := make([]completion, 0, len(habits))
		for _, h := range habits {
			out = append(out, completion{h.ID, h.Name})
		}
		return out, nil
	})
}

// completeStores completes store names from the schema.
func completeStores(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, s := range model.DefaultSchema().StoreNames() {
		if strings.HasPrefix(s, toComplete) {
			out = append(out, s)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// Positional argument completers.
var (
	completeProjectArgs  = firstArg(completeProjects)
	completeTaskArgs     = firstArg(completeTasks)
	completeCategoryArgs = firstArg(completeCategories)
	completeTagArgs      = firstArg(completeTags)
	completeSettingArgs  = firstArg(completeSettings)
	completeHabitArgs    = firstArg(completeHabits)
)

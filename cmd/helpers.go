package cmd

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/output"
	"github.com/manav03panchal/taskmap/internal/parser"
	"github.com/manav03panchal/taskmap/internal/query"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// now is the clock used for relative dates.
var now = time.Now

// userError turns parser errors into user errors and leaves others alone.
func userError(err error) error {
	var tpe *parser.TimeParseError
	if stderrors.As(err, &tpe) {
		return tpe.ToUserError()
	}
	return err
}

// parseDateMillis parses a date flag into Unix milliseconds.
func parseDateMillis(field, input string) (int64, error) {
	t, err := parser.ParseDate(field, input, now())
	if err != nil {
		return 0, userError(err)
	}
	return model.Millis(t), nil
}

// listFlags are the paging and sorting flags shared by list commands.
type listFlags struct {
	sort     string
	search   string
	page     int
	pageSize int
	all      bool
}

func (l *listFlags) register(cmd *cobra.Command, defaultSort string) {
	cmd.Flags().StringVar(&l.sort, "sort", defaultSort, "Sort by field[:asc|desc]")
	cmd.Flags().StringVarP(&l.search, "search", "q", "", "Only items whose name contains this text")
	cmd.Flags().IntVar(&l.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&l.pageSize, "page-size", 0, "Items per page (default from config)")
	cmd.Flags().BoolVar(&l.all, "all", false, "Show every item on one page")
}

// listParams builds query parameters for the flags and filter.
func listParams[T any](l *listFlags, filter func(T) bool) (query.Params[T], error) {
	var p query.Params[T]
	s, err := query.ParseSort(l.sort)
	if err != nil {
		return p, errors.NewUserErrorWithField("sort", l.sort, err.Error(), "Use a field name such as createdAt or dueDate:desc.")
	}
	if l.page < 1 {
		return p, validate.InRange("page", l.page, 1, 1<<30)
	}

	p.Filter = filter
	p.Sort = s
	p.Page = l.page
	p.PageSize = l.pageSize
	if p.PageSize == 0 {
		p.PageSize = ctx.PageSize()
	}
	if l.all {
		p.PageSize = -1
	}
	return p, nil
}

// matches reports whether any of fields contains the search text,
// case-insensitively. An empty search matches everything.
func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

// printPage prints one page of results.
func printPage[T any](res query.Result[T], cliPrint func([]T)) error {
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(res)
	}
	cliPrint(res.Data)
	if res.TotalPages > 1 {
		ctx.CLIFormatter().Muted(pageFooter(res.Page, res.TotalPages, res.Total))
	}
	return nil
}

func pageFooter(page, pages, total int) string {
	return fmt.Sprintf("Page %d/%d (%d total)", page, pages, total)
}

// printItems prints a full list.
func printItems[T any](items []T, cliPrint func([]T)) error {
	if ctx.IsJSON() {
		return output.PrintList(ctx.JSONFormatter(), items)
	}
	cliPrint(items)
	return nil
}

// printDeleted reports a single delete.
func printDeleted(kind, id string, deleted bool) error {
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintDelete(id, deleted)
	}
	if !deleted {
		ctx.CLIFormatter().Warning(kind + " " + id + " not found")
		return nil
	}
	ctx.CLIFormatter().Success("Deleted " + kind + " " + id)
	return nil
}

// printEntity prints v as JSON, or runs cliPrint.
func printEntity(v any, cliPrint func()) error {
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(v)
	}
	cliPrint()
	return nil
}

// noChanges is returned by update commands given no flags.
func noChanges(flags string) error {
	return errors.NewUserError("no updates specified", "Use "+flags+".")
}

// Package query filters, sorts and pages an in-memory snapshot of a store.
//
// Strings are compared with the root collation of golang.org/x/text
// (language.Und), so ordering is locale-aware and the same on every
// platform. Numbers compare numerically across Go numeric kinds. Values
// of mismatched or unsupported types compare equal, and the sort is
// stable, so such items keep their input order.
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/manav03panchal/taskmap/internal/model"
)

// DefaultPageSize is the page size callers use when none is configured.
const DefaultPageSize = 20

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort names the field to order by.
type Sort struct {
	Field string `json:"field"`
	Order Order  `json:"order"`
}

// ParseSort parses "field" or "field:asc|desc". An empty string yields nil.
func ParseSort(s string) (*Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	field, dir, _ := strings.Cut(s, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("sort field is empty in %q", s)
	}
	order := Asc
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		order = Desc
	default:
		return nil, fmt.Errorf("unknown sort order %q (use asc or desc)", dir)
	}
	return &Sort{Field: field, Order: order}, nil
}

// Params configures one query. A PageSize of zero or less disables
// paging, so the zero value returns every item in input order.
type Params[T any] struct {
	Filter   func(T) bool
	Sort     *Sort
	Page     int
	PageSize int
}

// Result is one page of matches.
type Result[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// FieldFunc returns the value of a named field of item.
type FieldFunc[T any] func(item T, field string) (any, bool)

// Apply runs filter, sort and paging over items. items is not modified.
func Apply[T any](items []T, p Params[T], field FieldFunc[T]) Result[T] {
	matched := make([]T, 0, len(items))
	for _, it := range items {
		if p.Filter == nil || p.Filter(it) {
			matched = append(matched, it)
		}
	}

	if p.Sort != nil && p.Sort.Field != "" && field != nil {
		sortItems(matched, *p.Sort, field)
	}

	return paginate(matched, p.Page, p.PageSize)
}

// ApplyRecords is Apply for generic records; sort fields may be dotted
// paths into nested objects.
func ApplyRecords(records []model.Record, p Params[model.Record]) Result[model.Record] {
	return Apply(records, p, func(r model.Record, f string) (any, bool) {
		return r.Lookup(f)
	})
}

func sortItems[T any](items []T, s Sort, field FieldFunc[T]) {
	// A collator carries scratch buffers and is not safe for concurrent use.
	col := collate.New(language.Und)
	sign := 1
	if s.Order == Desc {
		sign = -1
	}

	keys := make([]any, len(items))
	present := make([]bool, len(items))
	for i, it := range items {
		keys[i], present[i] = field(it, s.Field)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if !present[i] || !present[j] {
			return false
		}
		return sign*Compare(col, keys[i], keys[j]) < 0
	})

	sorted := make([]T, len(items))
	for n, i := range idx {
		sorted[n] = items[i]
	}
	copy(items, sorted)
}

// Compare orders two field values: numbers numerically, strings by col.
// Any other combination compares equal.
func Compare(col *collate.Collator, a, b any) int {
	if x, ok := model.AsNumber(a); ok {
		if y, ok := model.AsNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
		return 0
	}
	sa, ok := a.(string)
	if !ok {
		return 0
	}
	sb, ok := b.(string)
	if !ok {
		return 0
	}
	return col.CompareString(sa, sb)
}

func paginate[T any](items []T, page, pageSize int) Result[T] {
	total := len(items)
	if page < 1 {
		page = 1
	}

	if pageSize <= 0 {
		res := Result[T]{Data: items, Total: total, Page: 1, PageSize: total}
		if total > 0 {
			res.TotalPages = 1
		}
		if page > 1 {
			res.Page = page
			res.Data = []T{}
		}
		return res
	}
	res := Result[T]{
		Data:       []T{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return res
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	res.Data = items[start:end]
	return res
}

// And combines predicates; a nil predicate matches everything.
func And[T any](preds ...func(T) bool) func(T) bool {
	return func(item T) bool {
		for _, p := range preds {
			if p != nil && !p(item) {
				return false
			}
		}
		return true
	}
}

// FieldEquals returns a record predicate matching field == value, with
// numbers compared numerically.
func FieldEquals(field string, value any) func(model.Record) bool {
	return func(r model.Record) bool {
		v, ok := r.Lookup(field)
		if !ok {
			return false
		}
		if x, ok := model.AsNumber(v); ok {
			y, ok := model.AsNumber(value)
			return ok && x == y
		}
		return reflect.DeepEqual(v, value)
	}
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/manav03panchal/taskmap/internal/model"
)

func ns(res Result[model.Record]) []any {
	out := make([]any, len(res.Data))
	for i, r := range res.Data {
		out[i] = r["n"]
	}
	return out
}

func TestSortNumbersAscending(t *testing.T) {
	records := []model.Record{{"n": 3.0}, {"n": 1.0}, {"n": 2.0}}
	res := ApplyRecords(records, Params[model.Record]{Sort: &Sort{Field: "n", Order: Asc}})
	assert.Equal(t, []any{1.0, 2.0, 3.0}, ns(res))
	assert.Equal(t, []any{3.0, 1.0, 2.0}, []any{records[0]["n"], records[1]["n"], records[2]["n"]}, "input untouched")
}

func TestSortDescending(t *testing.T) {
	records := []model.Record{{"n": 1}, {"n": int64(3)}, {"n": 2.5}}
	res := ApplyRecords(records, Params[model.Record]{Sort: &Sort{Field: "n", Order: Desc}})
	assert.Equal(t, []any{int64(3), 2.5, 1}, ns(res))
}

func TestSortStringsCollated(t *testing.T) {
	records := []model.Record{{"n": "banana"}, {"n": "Apple"}, {"n": "apple"}, {"n": "cherry"}, {"n": "Éclair"}}
	res := ApplyRecords(records, Params[model.Record]{Sort: &Sort{Field: "n"}})
	assert.Equal(t, []any{"apple", "Apple", "banana", "cherry", "Éclair"}, ns(res))
}

func TestSortMixedTypesKeepOrder(t *testing.T) {
	records := []model.Record{{"n": "x", "i": 0}, {"n": true, "i": 1}, {"i": 2}, {"n": []any{1}, "i": 3}}
	res := ApplyRecords(records, Params[model.Record]{Sort: &Sort{Field: "n"}})
	var order []any
	for _, r := range res.Data {
		order = append(order, r["i"])
	}
	assert.Equal(t, []any{0, 1, 2, 3}, order)
}

func TestPagination(t *testing.T) {
	records := make([]model.Record, 5)
	for i := range records {
		records[i] = model.Record{"n": float64(i)}
	}

	tests := []struct {
		name       string
		page, size int
		want       []any
		pages      int
		wantSize   int
	}{
		{"first", 1, 2, []any{0.0, 1.0}, 3, 2},
		{"last_partial", 3, 2, []any{4.0}, 3, 2},
		{"beyond", 4, 2, []any{}, 3, 2},
		{"page_zero_defaults_to_one", 0, 2, []any{0.0, 1.0}, 3, 2},
		{"zero_size_unpaged", 1, 0, []any{0.0, 1.0, 2.0, 3.0, 4.0}, 1, 5},
		{"unpaged", 1, -1, []any{0.0, 1.0, 2.0, 3.0, 4.0}, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyRecords(records, Params[model.Record]{Page: tt.page, PageSize: tt.size})
			assert.Equal(t, tt.want, ns(res))
			assert.Equal(t, 5, res.Total)
			assert.Equal(t, tt.pages, res.TotalPages)
			assert.Equal(t, tt.wantSize, res.PageSize)
			assert.NotNil(t, res.Data)
		})
	}
}

func TestPaginationNonPositiveSizeReturnsEverything(t *testing.T) {
	records := make([]model.Record, 25)
	for i := range records {
		records[i] = model.Record{"n": float64(i)}
	}

	for _, size := range []int{0, -1} {
		res := ApplyRecords(records, Params[model.Record]{Page: 1, PageSize: size})
		assert.Len(t, res.Data, 25)
		assert.Equal(t, 25, res.Total)
		assert.Equal(t, 1, res.TotalPages)
		assert.Equal(t, 25, res.PageSize)
	}

	res := ApplyRecords(nil, Params[model.Record]{})
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.Zero(t, res.TotalPages)
}

func TestFilterBeforePaging(t *testing.T) {
	var records []model.Record
	for i := 0; i < 10; i++ {
		records = append(records, model.Record{"n": float64(i)})
	}
	even := func(r model.Record) bool {
		n, _ := model.AsNumber(r["n"])
		return int(n)%2 == 0
	}

	res := ApplyRecords(records, Params[model.Record]{Filter: even, Page: 1, PageSize: 2})
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []any{0.0, 2.0}, ns(res))
}

func TestEmptyInput(t *testing.T) {
	res := ApplyRecords(nil, Params[model.Record]{})
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.TotalPages)
	assert.Equal(t, 1, res.Page)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

type item struct {
	Name     string
	Priority int
}

func TestApplyTyped(t *testing.T) {
	items := []item{{"b", 2}, {"a", 3}, {"c", 1}}
	field := func(it item, f string) (any, bool) {
		switch f {
		case "name":
			return it.Name, true
		case "priority":
			return it.Priority, true
		}
		return nil, false
	}

	res := Apply(items, Params[item]{Sort: &Sort{Field: "priority", Order: Desc}}, field)
	assert.Equal(t, []item{{"a", 3}, {"b", 2}, {"c", 1}}, res.Data)

	res = Apply(items, Params[item]{Sort: &Sort{Field: "name"}, Filter: func(it item) bool { return it.Priority > 1 }}, field)
	assert.Equal(t, []item{{"a", 3}, {"b", 2}}, res.Data)
}

func TestSortByNestedPath(t *testing.T) {
	records := []model.Record{
		{"id": "x", "meta": map[string]any{"rank": 2.0}},
		{"id": "y", "meta": map[string]any{"rank": 1.0}},
	}
	res := ApplyRecords(records, Params[model.Record]{Sort: &Sort{Field: "meta.rank"}})
	assert.Equal(t, "y", res.Data[0]["id"])
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want *Sort
	}{
		{"", nil},
		{"name", &Sort{Field: "name", Order: Asc}},
		{"dueDate:desc", &Sort{Field: "dueDate", Order: Desc}},
		{" priority : ASC ", &Sort{Field: "priority", Order: Asc}},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSort("name:sideways")
	assert.Error(t, err)
	_, err = ParseSort(":desc")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	col := collate.New(language.Und)
	assert.Equal(t, -1, Compare(col, 1, 2.5))
	assert.Equal(t, 1, Compare(col, uint8(9), int64(3)))
	assert.Equal(t, 0, Compare(col, 1, "1"))
	assert.Equal(t, 0, Compare(col, true, false))
	assert.Negative(t, Compare(col, "a", "b"))
}

func TestPredicates(t *testing.T) {
	r := model.Record{"status": "active", "priority": 2.0, "tags": []any{"x"}}

	assert.True(t, FieldEquals("status", "active")(r))
	assert.True(t, FieldEquals("priority", 2)(r))
	assert.False(t, FieldEquals("priority", "2")(r))
	assert.True(t, FieldEquals("tags", []any{"x"})(r))
	assert.False(t, FieldEquals("missing", nil)(r))

	both := And(FieldEquals("status", "active"), nil, FieldEquals("priority", 3))
	assert.False(t, both(r))
}

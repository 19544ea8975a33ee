package db

import (
	"fmt"
	"sort"
	"strings"
)

// FilterKind says how a query parameter is matched against its column.
type FilterKind int

const (
	FilterExact    FilterKind = iota // column = value
	FilterContains                   // case-insensitive substring
	FilterDateFrom                   // column >= value::date
	FilterDateTo                     // column <= value::date
)

// Filter maps a query parameter to its database column.
type Filter struct {
	Kind   FilterKind
	Column string
}

// SearchQuery builds a filtered, paginated SELECT with positional arguments.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Add appends a WHERE fragment whose placeholders start at the current index.
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// Apply adds a single filter with value. Empty values are ignored.
func (q *SearchQuery) Apply(f Filter, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch f.Kind {
	case FilterExact:
		q.Add(fmt.Sprintf("%s = $%d", f.Column, q.idx), value)
	case FilterContains:
		q.Add(fmt.Sprintf("%s ILIKE $%d", f.Column, q.idx), "%"+value+"%")
	case FilterDateFrom:
		q.Add(fmt.Sprintf("%s >= $%d::date", f.Column, q.idx), value)
	case FilterDateTo:
		q.Add(fmt.Sprintf("%s <= $%d::date", f.Column, q.idx), value)
	}
}

// ApplyParams applies every known parameter in params. Parameters are
// applied in name order so the generated SQL is stable.
func (q *SearchQuery) ApplyParams(params map[string]string, filters map[string]Filter) {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := filters[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		q.Apply(filters[name], params[name])
	}
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplySort reads a comma-separated list of parameter names, each optionally
// prefixed with - for descending order. Unknown names are ignored and
// defaultOrder is used when nothing remains.
func (q *SearchQuery) ApplySort(sortParam, defaultOrder string, filters map[string]Filter) {
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		dir := " ASC"
		if strings.HasPrefix(field, "-") {
			dir = " DESC"
			field = field[1:]
		}
		if f, ok := filters[field]; ok {
			parts = append(parts, f.Column+dir)
		}
	}
	if len(parts) == 0 {
		q.orderBy = defaultOrder
		return
	}
	q.orderBy = strings.Join(parts, ", ")
}

func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *SearchQuery) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the filter arguments followed by limit and offset.
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

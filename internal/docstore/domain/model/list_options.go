package model

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rtdb-bridge/internal/shared/errors"
)

// Filter operators.
const (
	OpEqual              = "=="
	OpGreaterThanOrEqual = ">="
	OpLessThanOrEqual    = "<="
)

// Sort directions.
const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

// OrderField is one orderBy[n] clause.
type OrderField struct {
	Field     string
	Direction string
}

// Filter is one filter[n] clause. Value is kept raw; it is typed against the
// document field at evaluation time.
type Filter struct {
	Field string
	Op    string
	Value string
}

// ListOptions are the query parameters accepted on GET.
type ListOptions struct {
	OrderBy []OrderField
	Filters []Filter
	Limit   int
	Reverse bool
	SubPath string
}

// IsEmpty reports whether no constraint is present. SubPath alone is not a
// constraint.
func (o ListOptions) IsEmpty() bool {
	return len(o.OrderBy) == 0 && len(o.Filters) == 0 && o.Limit == 0 && !o.Reverse
}

// SubPathFields splits the dotted SubPath.
func (o ListOptions) SubPathFields() []string {
	if o.SubPath == "" {
		return nil
	}
	return strings.Split(o.SubPath, ".")
}

var indexedParam = regexp.MustCompile(`^(orderBy|filter)\[(\d+)\]\[(\w+)\]$`)

// ParseListOptions reads orderBy[n][field|direction], filter[n][field|op|value],
// limit, reverse and subPath. Indexed clauses are ordered by their index.
func ParseListOptions(params url.Values) (ListOptions, error) {
	var opts ListOptions
	orders := map[int]*OrderField{}
	filters := map[int]*Filter{}

	for name, values := range params {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch name {
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return ListOptions{}, invalid("limit must be a non-negative integer")
			}
			opts.Limit = n
			continue
		case "reverse":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return ListOptions{}, invalid("reverse must be a boolean")
			}
			opts.Reverse = b
			continue
		case "subPath":
			opts.SubPath = strings.Trim(value, ".")
			continue
		}

		m := indexedParam.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[2])

		if m[1] == "orderBy" {
			o := orders[idx]
			if o == nil {
				o = &OrderField{Direction: DirectionAsc}
				orders[idx] = o
			}
			switch m[3] {
			case "field":
				o.Field = value
			case "direction":
				d := strings.ToLower(value)
				if d != DirectionAsc && d != DirectionDesc {
					return ListOptions{}, invalid(fmt.Sprintf("unsupported direction %q", value))
				}
				o.Direction = d
			}
			continue
		}

		f := filters[idx]
		if f == nil {
			f = &Filter{}
			filters[idx] = f
		}
		switch m[3] {
		case "field":
			f.Field = value
		case "op":
			f.Op = value
		case "value":
			f.Value = value
		}
	}

	for _, idx := range sortedKeys(orders) {
		o := orders[idx]
		if o.Field == "" {
			return ListOptions{}, invalid(fmt.Sprintf("orderBy[%d] is missing a field", idx))
		}
		opts.OrderBy = append(opts.OrderBy, *o)
	}
	for _, idx := range sortedKeys(filters) {
		f := filters[idx]
		if f.Field == "" {
			return ListOptions{}, invalid(fmt.Sprintf("filter[%d] is missing a field", idx))
		}
		switch f.Op {
		case OpEqual, OpGreaterThanOrEqual, OpLessThanOrEqual:
		default:
			return ListOptions{}, invalid(fmt.Sprintf("filter[%d] has unsupported operator %q", idx, f.Op))
		}
		opts.Filters = append(opts.Filters, *f)
	}

	return opts, nil
}

func sortedKeys[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func invalid(msg string) error {
	return errors.NewValidationError(msg).WithCause(errors.ErrInvalidQuery)
}

package usecase

import (
	"sort"
	"strconv"
	"strings"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// valueField lets orderBy/filter address a scalar child itself.
const valueField = "value"

// entry is one candidate row: a document in a listing or a child of an object.
type entry struct {
	key   string
	value jsonvalue.Value
}

// evaluate filters, orders and limits entries. Filters are typed by the field
// they hit: strings compare as strings, numbers and booleans parse the raw
// filter value, anything else never matches a range.
func evaluate(entries []entry, opts model.ListOptions, idField string) []entry {
	out := entries[:0:0]
	for _, e := range entries {
		if matchesAll(e, opts.Filters, idField) {
			out = append(out, e)
		}
	}

	if len(opts.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range opts.OrderBy {
				c := compareValues(fieldOf(out[i], o.Field, idField), fieldOf(out[j], o.Field, idField))
				if o.Direction == model.DirectionDesc {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return out[i].key < out[j].key
		})
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		if opts.Reverse {
			out = out[len(out)-opts.Limit:]
		} else {
			out = out[:opts.Limit]
		}
	}
	return out
}

// fieldOf resolves name against an entry: a field of an object value first,
// then the entry key for the identifier field, then a scalar value itself.
func fieldOf(e entry, name, idField string) jsonvalue.Value {
	if v, ok := e.value.Get(name); ok {
		return v
	}
	if name == idField {
		return jsonvalue.StringValue(e.key)
	}
	if name == valueField && !e.value.IsObject() {
		return e.value
	}
	return jsonvalue.UndefinedValue()
}

func matchesAll(e entry, filters []model.Filter, idField string) bool {
	for _, f := range filters {
		if !matches(fieldOf(e, f.Field, idField), f) {
			return false
		}
	}
	return true
}

func matches(v jsonvalue.Value, f model.Filter) bool {
	var c int
	switch v.Kind() {
	case jsonvalue.String:
		c = strings.Compare(v.Str(), f.Value)
	case jsonvalue.Number:
		n, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return false
		}
		c = compareFloat(v.Number(), n)
	case jsonvalue.Bool:
		b, err := strconv.ParseBool(f.Value)
		if err != nil {
			return false
		}
		c = compareBool(v.Bool(), b)
	case jsonvalue.Null:
		return f.Op == model.OpEqual && f.Value == "null"
	default:
		return false
	}

	switch f.Op {
	case model.OpEqual:
		return c == 0
	case model.OpGreaterThanOrEqual:
		return c >= 0
	case model.OpLessThanOrEqual:
		return c <= 0
	default:
		return false
	}
}

// rank orders kinds: missing, null, false, true, numbers, strings, then
// containers.
func rank(v jsonvalue.Value) int {
	switch v.Kind() {
	case jsonvalue.Undefined:
		return 0
	case jsonvalue.Null:
		return 1
	case jsonvalue.Bool:
		if v.Bool() {
			return 3
		}
		return 2
	case jsonvalue.Number:
		return 4
	case jsonvalue.String:
		return 5
	default:
		return 6
	}
}

func compareValues(a, b jsonvalue.Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch a.Kind() {
	case jsonvalue.Number:
		return compareFloat(a.Number(), b.Number())
	case jsonvalue.String:
		return strings.Compare(a.Str(), b.Str())
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// objectEntries lists the children of an object value in order.
func objectEntries(v jsonvalue.Value) []entry {
	var out []entry
	v.Map().Range(func(k string, child jsonvalue.Value) bool {
		out = append(out, entry{key: k, value: child})
		return true
	})
	return out
}

// entriesObject rebuilds an object from entries, keeping their order.
func entriesObject(entries []entry) jsonvalue.Value {
	m := jsonvalue.NewMap()
	for _, e := range entries {
		m.Set(e.key, e.value)
	}
	return jsonvalue.ObjectValue(m)
}

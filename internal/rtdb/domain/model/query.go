package model

import (
	"net/url"
	"strconv"

	"rtdb-bridge/internal/shared/jsonvalue"
)

// OrderKind selects what a query orders by.
type OrderKind string

const (
	OrderByChild OrderKind = "child"
	OrderByKey   OrderKind = "key"
	OrderByValue OrderKind = "value"
)

// LimitKind selects which end of the ordered result a limit keeps.
type LimitKind string

const (
	LimitFirst LimitKind = "first"
	LimitLast  LimitKind = "last"
)

// Filter operators understood by the REST layer.
const (
	OpEqual              = "=="
	OpGreaterThanOrEqual = ">="
	OpLessThanOrEqual    = "<="
)

// DefaultIDField is the document identifier field used by orderByKey and by
// range filters with no explicit field.
const DefaultIDField = "id"

// valueField is the field orderByValue maps to.
const valueField = "value"

// Order is an ordering constraint. Field is only meaningful for OrderByChild.
type Order struct {
	Kind  OrderKind
	Field string
}

// Limit keeps the first or last Value results.
type Limit struct {
	Kind  LimitKind
	Value int
}

// Bound is one range endpoint. Key, when set, names the field the bound applies to.
type Bound struct {
	Value jsonvalue.Value
	Key   string
}

// QueryConstraints is the accumulated constraint state of a query. The pointer
// fields are never mutated after construction, so copies share them safely.
type QueryConstraints struct {
	OrderBy *Order
	Limit   *Limit
	StartAt *Bound
	EndAt   *Bound
	EqualTo *Bound
}

// IsEmpty reports whether no constraint has been applied.
func (c QueryConstraints) IsEmpty() bool {
	return c.OrderBy == nil && c.Limit == nil && c.StartAt == nil && c.EndAt == nil && c.EqualTo == nil
}

func (c QueryConstraints) WithOrder(o Order) QueryConstraints {
	c.OrderBy = &o
	return c
}

func (c QueryConstraints) WithLimit(l Limit) QueryConstraints {
	c.Limit = &l
	return c
}

func (c QueryConstraints) WithStartAt(b Bound) QueryConstraints {
	c.StartAt = &b
	return c
}

func (c QueryConstraints) WithEndAt(b Bound) QueryConstraints {
	c.EndAt = &b
	return c
}

func (c QueryConstraints) WithEqualTo(b Bound) QueryConstraints {
	c.EqualTo = &b
	return c
}

// OrderField resolves the field the active ordering refers to, or "" when unordered.
func (c QueryConstraints) OrderField(idField string) string {
	if c.OrderBy == nil {
		return ""
	}
	switch c.OrderBy.Kind {
	case OrderByKey:
		return idField
	case OrderByValue:
		return valueField
	default:
		return c.OrderBy.Field
	}
}

// Params translates the constraints for a read at path into REST query parameters.
// equalTo takes precedence over startAt/endAt: when it is present the range bounds
// are not emitted at all.
func (c QueryConstraints) Params(path Path, idField string) url.Values {
	if idField == "" {
		idField = DefaultIDField
	}
	params := url.Values{}

	orderField := c.OrderField(idField)
	if c.OrderBy != nil {
		params.Set("orderBy[0][field]", orderField)
		params.Set("orderBy[0][direction]", "asc")
	}

	if c.Limit != nil {
		params.Set("limit", strconv.Itoa(c.Limit.Value))
		if c.Limit.Kind == LimitLast {
			params.Set("reverse", "true")
		}
	}

	filterField := func(b *Bound) string {
		switch {
		case b.Key != "":
			return b.Key
		case orderField != "":
			return orderField
		default:
			return idField
		}
	}

	n := 0
	addFilter := func(b *Bound, op string) {
		prefix := "filter[" + strconv.Itoa(n) + "]"
		params.Set(prefix+"[field]", filterField(b))
		params.Set(prefix+"[op]", op)
		params.Set(prefix+"[value]", FormatFilterValue(b.Value))
		n++
	}

	if c.EqualTo != nil {
		addFilter(c.EqualTo, OpEqual)
	} else {
		if c.StartAt != nil {
			addFilter(c.StartAt, OpGreaterThanOrEqual)
		}
		if c.EndAt != nil {
			addFilter(c.EndAt, OpLessThanOrEqual)
		}
	}

	if path.Depth() > DepthDocument && !c.IsEmpty() {
		params.Set("subPath", path.DottedNested())
	}

	return params
}

// FormatFilterValue renders a bound the way the REST layer reads it back:
// strings raw, numbers in shortest form, everything else as JSON.
func FormatFilterValue(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.String:
		return v.Str()
	case jsonvalue.Number:
		return strconv.FormatFloat(v.Number(), 'f', -1, 64)
	case jsonvalue.Bool:
		return strconv.FormatBool(v.Bool())
	case jsonvalue.Undefined, jsonvalue.Null:
		return "null"
	default:
		raw, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Fingerprint identifies the constraint set for listener keys.
func (c QueryConstraints) Fingerprint(path Path, idField string) string {
	if c.IsEmpty() {
		return ""
	}
	return c.Params(path, idField).Encode()
}

package httpapi

import (
	"cmp"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/query"
	"github.com/kbukum/smokedb/store"
)

// Document is a record value as the API sees it: a JSON object.
type Document = map[string]any

// Condition is one where filter: the record field must equal Value.
type Condition struct {
	Field string
	Value string
}

// ParseCondition parses "field:value".
func ParseCondition(s string) (Condition, error) {
	field, value, ok := strings.Cut(s, ":")
	if !ok || field == "" {
		return Condition{}, apperrors.InvalidInput("where", "expected field:value")
	}
	return Condition{Field: field, Value: value}, nil
}

// ListOptions shape a record listing. In query strings:
//
//	?where=field:value   repeatable; all must match
//	?order=field|-field  ascending, or descending with a leading '-'
//	?skip=n&take=n       paging; take is capped by the configured maximum
//	?distinct=true       drop records whose values repeat
type ListOptions struct {
	Where    []Condition
	Order    string
	Desc     bool
	Skip     int
	Take     int // negative is unbounded
	Distinct bool
}

// SetOrder parses "field" or "-field".
func (o *ListOptions) SetOrder(s string) error {
	o.Order, o.Desc = strings.CutPrefix(s, "-")
	if o.Order == "" {
		return apperrors.InvalidInput("order", "expected field or -field")
	}
	return nil
}

func parseListOptions(c *gin.Context, maxTake int) (ListOptions, error) {
	o := ListOptions{Take: maxTake}
	if maxTake <= 0 {
		o.Take = -1
	}

	for _, w := range c.QueryArray("where") {
		cond, err := ParseCondition(w)
		if err != nil {
			return o, err
		}
		o.Where = append(o.Where, cond)
	}

	if order := c.Query("order"); order != "" {
		if err := o.SetOrder(order); err != nil {
			return o, err
		}
	}

	var err error
	if o.Skip, err = intParam(c, "skip", 0); err != nil {
		return o, err
	}
	if o.Take, err = intParam(c, "take", o.Take); err != nil {
		return o, err
	}
	if maxTake > 0 && o.Take > maxTake {
		o.Take = maxTake
	}

	if d := c.Query("distinct"); d != "" {
		if o.Distinct, err = strconv.ParseBool(d); err != nil {
			return o, apperrors.InvalidInput("distinct", "expected a boolean")
		}
	}
	return o, nil
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidInput(name, "expected a non-negative integer")
	}
	return n, nil
}

// Filter applies the where conditions.
func (o ListOptions) Filter(q *query.Queryable[store.Record[Document]]) *query.Queryable[store.Record[Document]] {
	for _, cond := range o.Where {
		q = q.Where(func(r store.Record[Document], _ int) bool {
			return matches(r.Value[cond.Field], cond.Value)
		})
	}
	return q
}

// Apply builds the listing pipeline: filter, distinct, order, then page.
func (o ListOptions) Apply(q *query.Queryable[store.Record[Document]]) *query.Queryable[store.Record[Document]] {
	q = o.Filter(q)
	if o.Distinct {
		q = q.DistinctBy(func(a, b store.Record[Document]) bool { return reflect.DeepEqual(a.Value, b.Value) })
	}
	if o.Order != "" {
		field, desc := o.Order, o.Desc
		q = query.OrderByFunc(q, func(a, b store.Record[Document]) int {
			c := compareValues(a.Value[field], b.Value[field])
			if desc {
				return -c
			}
			return c
		})
	}
	if o.Skip > 0 {
		q = q.Skip(o.Skip)
	}
	if o.Take >= 0 {
		q = q.Take(o.Take)
	}
	return q
}

// matches compares a decoded JSON value with a query string value.
func matches(v any, want string) bool {
	switch v := v.(type) {
	case nil:
		return want == "null"
	case string:
		return v == want
	case float64:
		f, err := strconv.ParseFloat(want, 64)
		return err == nil && f == v
	case bool:
		b, err := strconv.ParseBool(want)
		return err == nil && b == v
	default:
		return fmt.Sprint(v) == want
	}
}

// compareValues orders decoded JSON values: missing and null first, then
// booleans, numbers, strings and anything else by its printed form.
func compareValues(a, b any) int {
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch a := a.(type) {
	case nil:
		return 0
	case bool:
		return cmp.Compare(boolInt(a), boolInt(b.(bool)))
	case float64:
		return cmp.Compare(a, b.(float64))
	case string:
		return cmp.Compare(a, b.(string))
	default:
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

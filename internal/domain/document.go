package domain

import (
	"context"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

// Collection names used by the application.
const (
	CollectionUsers           = "users"
	CollectionReadings        = "readings"
	CollectionMedications     = "medications"
	CollectionMedicationLog   = "medication_log"
	CollectionWeightLog       = "weight_log"
	CollectionTips            = "lifestyle_tips"
	CollectionRecommendations = "recommendations"
	CollectionHealthGoals     = "health_goals"
)

// Document is a schemaless record held by the document store.
type Document struct {
	ID   string
	Data map[string]any
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Filter restricts a query to documents whose field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// OrderBy sorts query results by a single field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Query describes a filtered, ordered read against one collection.
type Query struct {
	Collection string
	Filters    []Filter
	Order      *OrderBy
}

// SnapshotFunc receives the full current result set of a subscription.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives stream-level failures of a subscription.
type ErrorFunc func(err error)

// DocumentStore is the port to the hosted document database.
//
// Subscribe delivers snapshots for a single subscription serially and in the
// order the store produced them. The returned cancel func is idempotent.
type DocumentStore interface {
	Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (cancel func(), err error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Delete(ctx context.Context, collection, id string) error
}

type serverTimestamp struct{}

// ServerTimestamp is a field value the store replaces with its own clock on write.
var ServerTimestamp any = serverTimestamp{}

// ResolveServerTimestamps returns a copy of fields with every ServerTimestamp
// placeholder replaced by now.
func ResolveServerTimestamps(fields map[string]any, now time.Time) map[string]any {
	out := maps.Clone(fields)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range out {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
		}
	}
	return out
}

// Has reports whether field is present and non-nil.
func (d Document) Has(field string) bool {
	v, ok := d.Data[field]
	return ok && v != nil
}

// String returns the string value of field, or "" when absent.
func (d Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

// Float returns the numeric value of field.
func (d Document) Float(field string) (float64, bool) {
	return toFloat(d.Data[field])
}

// Int returns the value of field when it holds an integral number.
func (d Document) Int(field string) (int, bool) {
	f, ok := toFloat(d.Data[field])
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Time returns the timestamp value of field. Both native times and
// RFC 3339 strings (as produced by JSON round trips) are accepted.
func (d Document) Time(field string) (time.Time, bool) {
	return toTime(d.Data[field])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// compare orders a against b. ok is false when the two values are not
// comparable (different kinds, or either side missing).
func compare(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if bt, isTime := b.(time.Time); isTime {
		at, ok := toTime(a)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if at, isTime := a.(time.Time); isTime {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		switch {
		case !ok:
			return 0, false
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// Matches reports whether doc satisfies every filter of q.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Filters {
		c, ok := compare(doc.Data[f.Field], f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLe:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGe:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sort orders docs in place according to q.Order. Documents missing the
// order field sort first in ascending order; ties keep their input order.
func (q Query) Sort(docs []Document) {
	if q.Order == nil {
		return
	}
	field, desc := q.Order.Field, q.Order.Desc
	slices.SortStableFunc(docs, func(a, b Document) int {
		av, bv := a.Data[field], b.Data[field]
		var c int
		switch {
		case av == nil && bv == nil:
			c = 0
		case av == nil:
			c = -1
		case bv == nil:
			c = 1
		default:
			c, _ = compare(av, bv)
		}
		if desc {
			return -c
		}
		return c
	})
}

// Apply filters and sorts docs, returning a new slice.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	q.Sort(out)
	return out
}

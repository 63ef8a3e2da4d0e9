package domain

import (
	"math"
	"time"
)

// IDRemap moves a row written offline to a new id, together with the
// columns of other tables that point at it.
type IDRemap struct {
	Table    string     `json:"table"`
	From     Value      `json:"from"`
	To       Value      `json:"to"`
	Children []ChildRef `json:"children,omitempty"`
}

// Rewrite applies the remap to a queued entry in place and reports whether
// the entry carried the old id.
func (m IDRemap) Rewrite(e *QueueEntry) bool {
	if e.Payload == nil {
		return false
	}
	from := m.From.Key()
	changed := false

	if e.TableName == m.Table {
		if id, ok := e.Payload.ID(); ok && id.Key() == from {
			e.Payload["id"] = m.To
			e.RowID = m.To.Key()
			changed = true
		}
	}
	for _, c := range m.Children {
		if e.TableName != c.Table {
			continue
		}
		if ref, ok := e.Payload[c.Column]; ok && !ref.IsNull() && ref.Key() == from {
			e.Payload[c.Column] = m.To
			changed = true
		}
	}
	return changed
}

// SameAs reports whether stored holds the values of every non-id column of
// r. Numbers compare by value, booleans match 0 and 1, and timestamps match
// to the microsecond, which is what the remote store keeps.
func (r Row) SameAs(stored Row) bool {
	for col, v := range r {
		if col == "id" {
			continue
		}
		s, ok := stored[col]
		if !ok || !sameValue(v, s) {
			return false
		}
	}
	return true
}

func sameValue(a, b Value) bool {
	if a.Equal(b) {
		return true
	}
	if a.IsNull() || b.IsNull() {
		return false
	}
	if x, ok := a.number(); ok {
		if y, ok := b.number(); ok {
			return math.Abs(x-y) <= 1e-9*math.Max(1, math.Abs(x))
		}
		if y, ok := b.AsBool(); ok {
			return (x != 0) == y
		}
	}
	if x, ok := a.AsBool(); ok {
		if y, ok := b.number(); ok {
			return x == (y != 0)
		}
	}
	if x, ok := a.AsTime(); ok {
		if y, ok := b.AsTime(); ok {
			return x.Truncate(time.Microsecond).Equal(y.Truncate(time.Microsecond))
		}
	}
	return a.Text() == b.Text()
}

func (v Value) number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

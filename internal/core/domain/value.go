package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTimestamp
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindTimestamp: "timestamp",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func parseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNull, false
}

// Value is a single column value. The zero Value is Null.
//
// Only the field matching kind is meaningful; use the As* accessors to read
// it, so every conversion site has to handle each kind explicitly.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a floating point number
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, s: s} }

// Timestamp wraps a point in time, normalized to UTC
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and true if v is a Bool
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and true if v is an Int
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float and true if v is a Float
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string and true if v is a String
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsTime returns the time and true if v is a Timestamp
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindTimestamp }

// Any returns v as a database/sql argument
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t
	default:
		return nil
	}
}

// Text renders v as plain text. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Key renders v as a row key. Integral floats render like integers so that
// 7 and 7.0 address the same row.
func (v Value) Key() string {
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
		return strconv.FormatInt(int64(v.f), 10)
	}
	return v.Text()
}

// Equal reports whether v and o hold the same kind and value
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindTimestamp:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "NULL"
	}
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.Text()
}

// FromAny converts a database/sql driver value (or a plain Go value) to a
// Value. Unknown types are rendered with fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case time.Time:
		return Timestamp(t)
	case *time.Time:
		if t == nil {
			return Null()
		}
		return Timestamp(*t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return String(t.String())
	default:
		return String(fmt.Sprint(t))
	}
}

type taggedValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes v as {"kind": ..., "value": ...}
func (v Value) MarshalJSON() ([]byte, error) {
	var raw any
	switch v.kind {
	case KindNull:
		return []byte(`{"kind":"null"}`), nil
	case KindBool:
		raw = v.b
	case KindInt:
		raw = v.i
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("cannot encode float %v", v.f)
		}
		raw = v.f
	case KindString:
		raw = v.s
	case KindTimestamp:
		raw = v.t.Format(time.RFC3339Nano)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedValue{Kind: v.kind.String(), Value: encoded})
}

// UnmarshalJSON decodes either the tagged form or a bare JSON scalar
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidPayload)
	}
	if data[0] == '{' {
		var tagged taggedValue
		if err := json.Unmarshal(data, &tagged); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		kind, ok := parseKind(tagged.Kind)
		if !ok {
			return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, tagged.Kind)
		}
		return v.decodeTagged(kind, tagged.Value)
	}
	return v.decodeScalar(data)
}

func (v *Value) decodeTagged(kind Kind, raw json.RawMessage) error {
	if kind == KindNull {
		*v = Null()
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s value missing", ErrInvalidPayload, kind)
	}

	var err error
	switch kind {
	case KindBool:
		var b bool
		err = json.Unmarshal(raw, &b)
		*v = Bool(b)
	case KindInt:
		var n json.Number
		if err = json.Unmarshal(raw, &n); err == nil {
			var i int64
			i, err = n.Int64()
			*v = Int(i)
		}
	case KindFloat:
		var f float64
		err = json.Unmarshal(raw, &f)
		*v = Float(f)
	case KindString:
		var s string
		err = json.Unmarshal(raw, &s)
		*v = String(s)
	case KindTimestamp:
		var s string
		if err = json.Unmarshal(raw, &s); err == nil {
			var ts time.Time
			ts, err = time.Parse(time.RFC3339Nano, s)
			*v = Timestamp(ts)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s value: %v", ErrInvalidPayload, kind, err)
	}
	return nil
}

func (v *Value) decodeScalar(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var x any
	if err := dec.Decode(&x); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch x.(type) {
	case nil, bool, string, json.Number:
		*v = FromAny(x)
		return nil
	default:
		return fmt.Errorf("%w: unsupported JSON value %s", ErrInvalidPayload, data)
	}
}

// Row maps column names to values. Queue payloads and query results are Rows.
type Row map[string]Value

// Columns returns the column names in sorted order
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a shallow copy of r
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's primary key value, if present and non-null
func (r Row) ID() (Value, bool) {
	v, ok := r["id"]
	if !ok || v.IsNull() {
		return Null(), false
	}
	return v, true
}

// RowFromMap converts a plain map (e.g. decoded request JSON) to a Row
func RowFromMap(m map[string]any) Row {
	out := make(Row, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

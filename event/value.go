package event

import (
	"github.com/juju/errors"
	"math"
	"sort"
)

type ValueKind uint8

const (
	NullKind ValueKind = iota
	StringKind
	NumberKind
	BoolKind
	ListKind
	MapKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BoolKind:
		return "bool"
	case ListKind:
		return "list"
	case MapKind:
		return "map"
	}
	return "unknown"
}

// Value is a JSON-representable metadata value. The zero Value is null.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	list    []Value
	fields  map[string]Value
}

func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{kind: StringKind, str: s}
}

func Number(n float64) Value {
	return Value{kind: NumberKind, num: n}
}

func Int(n int64) Value {
	return Value{kind: NumberKind, num: float64(n)}
}

func Bool(b bool) Value {
	return Value{kind: BoolKind, boolean: b}
}

func List(items ...Value) Value {
	return Value{kind: ListKind, list: items}
}

func Map(fields map[string]Value) Value {
	return Value{kind: MapKind, fields: fields}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == NullKind
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == StringKind
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == NumberKind
}

func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == BoolKind
}

func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == ListKind
}

func (v Value) AsMap() (map[string]Value, bool) {
	return v.fields, v.kind == MapKind
}

// Get looks up key in a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != MapKind {
		return Value{}, false
	}
	field, ok := v.fields[key]
	return field, ok
}

// Interface converts v back into the plain Go representation produced by
// decoding JSON into an interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case StringKind:
		return v.str
	case NumberKind:
		return v.num
	case BoolKind:
		return v.boolean
	case ListKind:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.Interface()
		}
		return items
	case MapKind:
		fields := make(map[string]interface{}, len(v.fields))
		for k, field := range v.fields {
			fields[k] = field.Interface()
		}
		return fields
	}
	return nil
}

// FromAny converts decoded JSON data into a Value.
func FromAny(data interface{}) (Value, error) {
	switch d := data.(type) {
	case nil:
		return Null(), nil
	case Value:
		return d, nil
	case string:
		return String(d), nil
	case bool:
		return Bool(d), nil
	case float64:
		return Number(d), nil
	case float32:
		return Number(float64(d)), nil
	case int:
		return Int(int64(d)), nil
	case int32:
		return Int(int64(d)), nil
	case int64:
		return Int(d), nil
	case uint:
		return Number(float64(d)), nil
	case uint32:
		return Number(float64(d)), nil
	case uint64:
		return Number(float64(d)), nil
	case []Value:
		return List(d...), nil
	case map[string]Value:
		return Map(d), nil
	case []interface{}:
		items := make([]Value, len(d))
		for i, item := range d {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, errors.Annotatef(err, "index %d", i)
			}
			items[i] = converted
		}
		return List(items...), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(d))
		for k, field := range d {
			converted, err := FromAny(field)
			if err != nil {
				return Value{}, errors.Annotatef(err, "key %q", k)
			}
			fields[k] = converted
		}
		return Map(fields), nil
	}
	return Value{}, errors.NotSupportedf("metadata value of type %T", data)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case StringKind:
		return json.Marshal(v.str)
	case NumberKind:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, errors.NotSupportedf("non-finite number %v", v.num)
		}
		return json.Marshal(v.num)
	case BoolKind:
		if v.boolean {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case ListKind:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case MapKind:
		if v.fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.fields)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Trace(err)
	}
	converted, err := FromAny(decoded)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case StringKind:
		return v.str == other.str
	case NumberKind:
		return v.num == other.num
	case BoolKind:
		return v.boolean == other.boolean
	case ListKind:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case MapKind:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for k, field := range v.fields {
			o, ok := other.fields[k]
			if !ok || !field.Equal(o) {
				return false
			}
		}
		return true
	}
	return true
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

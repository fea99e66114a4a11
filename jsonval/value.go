// Package jsonval models a parsed JSON document as an explicit tagged union
// so callers can walk arbitrary, schema-less payloads with a type switch on
// Kind instead of probing interface{} values.
package jsonval

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input is not well-formed JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Kind is the variant tag of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Field is one key/value member of an Object, in document order.
type Field struct {
	Key   string
	Value Value
}

// Value is a single JSON value.
type Value struct {
	kind   Kind
	b      bool
	num    float64
	str    string // string contents, or the literal text of a number
	raw    string // compact source text, used for Text on containers
	items  []Value
	fields []Field
}

// Parse parses text into a Value.
func Parse(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" || !gjson.Valid(text) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.Parse(text)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.True:
		return Value{kind: Bool, b: true}
	case gjson.False:
		return Value{kind: Bool}
	case gjson.Number:
		return Value{kind: Number, num: r.Num, str: r.Raw}
	case gjson.String:
		return Value{kind: String, str: r.Str}
	case gjson.JSON:
		if r.IsArray() {
			v := Value{kind: Array, raw: r.Raw}
			r.ForEach(func(_, item gjson.Result) bool {
				v.items = append(v.items, fromResult(item))
				return true
			})
			return v
		}
		v := Value{kind: Object, raw: r.Raw}
		r.ForEach(func(key, item gjson.Result) bool {
			v.fields = append(v.fields, Field{Key: key.Str, Value: fromResult(item)})
			return true
		})
		return v
	default:
		return Value{kind: Null}
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Str returns the contents of a String value, or "".
func (v Value) Str() string {
	if v.kind == String {
		return v.str
	}
	return ""
}

// Num returns the value of a Number, or 0.
func (v Value) Num() float64 { return v.num }

// Items returns the elements of an Array.
func (v Value) Items() []Value { return v.items }

// Fields returns the members of an Object in document order.
func (v Value) Fields() []Field { return v.fields }

// Get returns the first member named key of an Object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Truthy reports whether the value would count as present: null, false, 0,
// "" and empty containers do not.
func (v Value) Truthy() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.num != 0
	case String:
		return v.str != ""
	case Array:
		return len(v.items) > 0
	case Object:
		return len(v.fields) > 0
	default:
		return false
	}
}

// First returns the first truthy member among keys.
func (v Value) First(keys ...string) (Value, bool) {
	for _, k := range keys {
		if f, ok := v.Get(k); ok && f.Truthy() {
			return f, true
		}
	}
	return Value{}, false
}

// Text renders the value as plain text: strings verbatim, numbers as their
// literal, containers as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.str
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Array, Object:
		return v.raw
	default:
		return ""
	}
}

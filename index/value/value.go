// Package value holds the typed scalar keys stored in an index.
//
// A Value is one of an int64, a float64 or a string. Values of different
// kinds are not ordered against each other: Compare reports ErrTypeMismatch
// instead of inventing a cross-kind order.
package value

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrTypeMismatch is returned when two values of different kinds meet.
var ErrTypeMismatch = errors.New("value: type mismatch")

// Kind identifies the scalar type carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	default:
		return "INVALID"
	}
}

// Value is an immutable typed scalar. The zero Value has KindInvalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func NewInt(v int64) Value     { return Value{kind: KindInt, i: v} }
func NewFloat(v float64) Value { return Value{kind: KindFloat, f: v} }
func NewString(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsValid() bool  { return v.kind != KindInvalid }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string    { return v.s }

// Compare orders a and b. It returns ErrTypeMismatch if the kinds differ or
// either value is invalid. Floats use cmp.Compare, so NaN sorts first and
// equals itself.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind || a.kind == KindInvalid {
		return 0, errors.Wrapf(ErrTypeMismatch, "cannot compare %s with %s", a.kind, b.kind)
	}
	switch a.kind {
	case KindInt:
		return cmp.Compare(a.i, b.i), nil
	case KindFloat:
		return cmp.Compare(a.f, b.f), nil
	default:
		return strings.Compare(a.s, b.s), nil
	}
}

// Equal reports whether a and b have the same kind and compare equal.
func Equal(a, b Value) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}

// Parse reads text as a value of the given kind.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "value: parse %q as %s", text, kind)
		}
		return NewInt(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "value: parse %q as %s", text, kind)
		}
		return NewFloat(f), nil
	case KindString:
		return NewString(text), nil
	default:
		return Value{}, errors.Newf("value: cannot parse into kind %s", kind)
	}
}

// ParseAuto guesses the kind of text: integers first, then floats, then
// strings. A double-quoted token is always a string.
func ParseAuto(text string) Value {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return NewString(text[1 : len(text)-1])
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return NewInt(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return NewFloat(f)
	}
	return NewString(text)
}

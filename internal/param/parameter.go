// Package param provides typed, range-validated algorithm parameters.
//
// Every algorithm declares an immutable Schema once at package level and builds
// a fresh Config from it per instance, so no two instances ever share mutable
// parameter state.
package param

import (
	"fmt"
	"math"
	"strings"
)

// Kind declares the accepted value shape of a parameter.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindIntList
	KindFloatList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindIntList:
		return "list-of-int"
	case KindFloatList:
		return "list-of-float"
	default:
		return "unknown"
	}
}

// IsList reports whether values of this kind are lists.
func (k Kind) IsList() bool {
	return k == KindIntList || k == KindFloatList
}

// Range is an inclusive [Min, Max] bound. Infinite bounds are allowed.
type Range struct {
	Min float64
	Max float64
}

// Between returns the inclusive range [min, max].
func Between(min, max float64) *Range {
	return &Range{Min: min, Max: max}
}

// AtLeast returns the range [min, +Inf].
func AtLeast(min float64) *Range {
	return &Range{Min: min, Max: math.Inf(1)}
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Spec is the immutable definition of one parameter.
type Spec struct {
	Name        string
	Kind        Kind
	Range       *Range // nil means unbounded
	Description string
	Default     any
}

// Parameter is a named, typed, range-constrained value cell.
type Parameter struct {
	spec  Spec
	value any
}

// NewParameter creates a parameter holding the spec default. The default is
// trusted: it is converted to the canonical representation of the kind when
// possible but never range checked.
func NewParameter(spec Spec) *Parameter {
	if spec.Range != nil {
		r := *spec.Range
		spec.Range = &r
	}
	if normalized, err := normalize(spec.Kind, spec.Default); err == nil {
		spec.Default = normalized
	} else {
		spec.Default = cloneValue(spec.Default)
	}
	return &Parameter{spec: spec, value: cloneValue(spec.Default)}
}

// Spec returns the parameter definition.
func (p *Parameter) Spec() Spec {
	s := p.spec
	s.Default = cloneValue(s.Default)
	return s
}

// Value returns a copy of the current value.
func (p *Parameter) Value() any {
	return cloneValue(p.value)
}

// Set validates v against the parameter kind and range and stores it.
// On error the previous value is kept.
func (p *Parameter) Set(v any) error {
	normalized, err := normalize(p.spec.Kind, v)
	if err != nil {
		return fmt.Errorf("%w: %s expects %s, got %v (%T)", ErrKind, p.spec.Name, p.spec.Kind, v, v)
	}

	if p.spec.Range != nil {
		for _, f := range numbers(normalized) {
			if !p.spec.Range.Contains(f) {
				return fmt.Errorf("%w: %s value %v outside %s", ErrRange, p.spec.Name, v, p.spec.Range)
			}
		}
	}

	p.value = normalized
	return nil
}

// normalize converts v into the canonical Go representation of kind:
// int, float64, []int or []float64.
func normalize(kind Kind, v any) (any, error) {
	switch kind {
	case KindInt:
		if n, ok := toInt(v); ok {
			return n, nil
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case KindIntList:
		items, ok := toList(v)
		if !ok {
			break
		}
		out := make([]int, len(items))
		for i, item := range items {
			n, ok := toInt(item)
			if !ok {
				return nil, ErrKind
			}
			out[i] = n
		}
		return out, nil
	case KindFloatList:
		items, ok := toList(v)
		if !ok {
			break
		}
		out := make([]float64, len(items))
		for i, item := range items {
			f, ok := toFloat(item)
			if !ok {
				return nil, ErrKind
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, ErrKind
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		// Decoders (JSON, YAML) hand every number over as float64.
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		// -math.MinInt is the first value past the int range, exact as a float64.
		if n >= -math.MinInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []int:
		return anySlice(l), true
	case []int32:
		return anySlice(l), true
	case []int64:
		return anySlice(l), true
	case []float32:
		return anySlice(l), true
	case []float64:
		return anySlice(l), true
	}
	return nil, false
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// numbers flattens a normalized value into the floats that the range applies to.
func numbers(v any) []float64 {
	switch n := v.(type) {
	case int:
		return []float64{float64(n)}
	case float64:
		return []float64{n}
	case []int:
		out := make([]float64, len(n))
		for i, x := range n {
			out[i] = float64(x)
		}
		return out
	case []float64:
		return n
	}
	return nil
}

func cloneValue(v any) any {
	switch l := v.(type) {
	case []int:
		return append([]int(nil), l...)
	case []float64:
		return append([]float64(nil), l...)
	}
	return v
}

// FormatValue renders a value the way the parameter tools print it.
func FormatValue(v any) string {
	switch l := v.(type) {
	case []int:
		parts := make([]string, len(l))
		for i, x := range l {
			parts[i] = fmt.Sprint(x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []float64:
		parts := make([]string, len(l))
		for i, x := range l {
			parts[i] = fmt.Sprintf("%g", x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case float64:
		return fmt.Sprintf("%g", l)
	}
	return fmt.Sprint(v)
}

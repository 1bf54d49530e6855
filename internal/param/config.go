package param

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestDistance is the largest edit distance for which an unknown name
// gets a "did you mean" hint.
const maxSuggestDistance = 2

// Schema is the ordered, immutable parameter table of an algorithm.
type Schema []Spec

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for i, spec := range s {
		if spec.Range != nil {
			r := *spec.Range
			spec.Range = &r
		}
		spec.Default = cloneValue(spec.Default)
		out[i] = spec
	}
	return out
}

// Assignment is one name/value pair of a bulk update.
type Assignment struct {
	Name  string
	Value any
}

// AssignmentsFromMap orders a map by key so bulk updates built from decoded
// config files are deterministic.
func AssignmentsFromMap(m map[string]any) []Assignment {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Assignment, len(names))
	for i, name := range names {
		out[i] = Assignment{Name: name, Value: m[name]}
	}
	return out
}

// ParseAssignment parses "name=value" as given on a command line. See
// ParseValue for the value syntax.
func ParseAssignment(s string) (Assignment, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Assignment{}, fmt.Errorf("expected name=value, got %q", s)
	}
	return Assignment{Name: name, Value: ParseValue(raw)}, nil
}

// ParseValue converts a textual value. A value in brackets or containing
// commas becomes a list; otherwise it is an int, a float, or is left as a
// string for Set to reject.
func ParseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	bracketed := strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]")
	raw = strings.TrimSpace(strings.Trim(raw, "[]"))

	if bracketed || strings.Contains(raw, ",") {
		items := []any{}
		if raw == "" {
			return items
		}
		for _, part := range strings.Split(raw, ",") {
			items = append(items, parseScalar(strings.TrimSpace(part)))
		}
		return items
	}
	return parseScalar(raw)
}

func parseScalar(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Config is the mutable parameter store of one algorithm instance.
type Config struct {
	algorithm string
	order     []string
	params    map[string]*Parameter
}

// NewConfig builds a config for the named algorithm, copying every default
// of the schema into the instance.
func NewConfig(algorithm string, schema Schema) *Config {
	c := &Config{
		algorithm: algorithm,
		order:     make([]string, 0, len(schema)),
		params:    make(map[string]*Parameter, len(schema)),
	}
	for _, spec := range schema {
		c.order = append(c.order, spec.Name)
		c.params[spec.Name] = NewParameter(spec)
	}
	return c
}

// Algorithm returns the name of the owning algorithm.
func (c *Config) Algorithm() string {
	return c.algorithm
}

// Names returns the parameter names in schema order.
func (c *Config) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Config) lookup(name string) (*Parameter, error) {
	p, ok := c.params[name]
	if !ok {
		if near := c.closest(name); near != "" {
			return nil, fmt.Errorf("%w: %q is not a valid parameter of %s (did you mean %q?)",
				ErrUnknownParameter, name, c.algorithm, near)
		}
		return nil, fmt.Errorf("%w: %q is not a valid parameter of %s", ErrUnknownParameter, name, c.algorithm)
	}
	return p, nil
}

// closest returns the declared name nearest to name, or "" if none is within
// maxSuggestDistance edits.
func (c *Config) closest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range c.order {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// Get returns a copy of the current value of a parameter.
func (c *Config) Get(name string) (any, error) {
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Value(), nil
}

// Describe returns the definition of a parameter.
func (c *Config) Describe(name string) (Spec, error) {
	p, err := c.lookup(name)
	if err != nil {
		return Spec{}, err
	}
	return p.Spec(), nil
}

// Set validates and stores a single value.
func (c *Config) Set(name string, v any) error {
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	return p.Set(v)
}

// Update applies assignments in order and stops at the first failure.
// Assignments before the failing one stay applied; later ones are never
// evaluated.
func (c *Config) Update(assignments []Assignment) error {
	for _, a := range assignments {
		if err := c.Set(a.Name, a.Value); err != nil {
			return err
		}
	}
	return nil
}

// The typed accessors below are for algorithm code reading its own schema.
// Asking for an undeclared name or the wrong kind is a programming error and
// panics.

// Int returns the value of a KindInt parameter.
func (c *Config) Int(name string) int {
	return mustValue[int](c, name)
}

// Float returns the value of a KindFloat parameter.
func (c *Config) Float(name string) float64 {
	return mustValue[float64](c, name)
}

// Ints returns a copy of the value of a KindIntList parameter.
func (c *Config) Ints(name string) []int {
	return mustValue[[]int](c, name)
}

// Floats returns a copy of the value of a KindFloatList parameter.
func (c *Config) Floats(name string) []float64 {
	return mustValue[[]float64](c, name)
}

func mustValue[T any](c *Config, name string) T {
	p, err := c.lookup(name)
	if err != nil {
		panic(err)
	}
	v, ok := p.Value().(T)
	if !ok {
		panic(fmt.Sprintf("param: %s.%s is %s, not %T", c.algorithm, name, p.spec.Kind, *new(T)))
	}
	return v
}

package param_test

import (
	"math"
	"testing"

	"histokit/internal/param"

	"github.com/stretchr/testify/require"
)

func testSchema() param.Schema {
	return param.Schema{
		{Name: "rate", Kind: param.KindFloat, Range: param.Between(0, 1), Description: "a rate", Default: 0.5},
		{Name: "iters", Kind: param.KindInt, Range: param.AtLeast(1), Description: "iterations", Default: 10},
		{Name: "factors", Kind: param.KindIntList, Range: param.AtLeast(1), Description: "factors", Default: []int{4, 2, 1}},
		{Name: "weights", Kind: param.KindFloatList, Description: "weights", Default: []float64{0.25, 0.75}},
	}
}

func TestParameter_SetInRangeIsIdempotent(t *testing.T) {
	p := param.NewParameter(testSchema()[0])

	require.NoError(t, p.Set(0.3))
	once := p.Value()
	require.NoError(t, p.Set(0.3))
	require.Equal(t, once, p.Value())
	require.Equal(t, 0.3, p.Value())

	// bounds are inclusive
	require.NoError(t, p.Set(0.0))
	require.NoError(t, p.Set(1))
	require.Equal(t, 1.0, p.Value())
}

func TestParameter_OutOfRangeKeepsPreviousValue(t *testing.T) {
	p := param.NewParameter(testSchema()[0])
	require.NoError(t, p.Set(0.2))

	err := p.Set(1.5)
	require.ErrorIs(t, err, param.ErrRange)
	require.Equal(t, 0.2, p.Value())

	err = p.Set(-0.01)
	require.ErrorIs(t, err, param.ErrRange)
	require.Equal(t, 0.2, p.Value())
}

func TestParameter_KindChecks(t *testing.T) {
	schema := testSchema()
	rate := param.NewParameter(schema[0])
	iters := param.NewParameter(schema[1])
	factors := param.NewParameter(schema[2])

	require.ErrorIs(t, rate.Set("fast"), param.ErrKind)
	require.ErrorIs(t, rate.Set([]float64{0.1}), param.ErrKind)
	require.ErrorIs(t, rate.Set(math.NaN()), param.ErrKind)

	require.ErrorIs(t, iters.Set(2.5), param.ErrKind)
	require.NoError(t, iters.Set(3.0))
	require.Equal(t, 3, iters.Value())
	require.NoError(t, iters.Set(int64(7)))
	require.Equal(t, 7, iters.Value())

	require.ErrorIs(t, factors.Set(2), param.ErrKind)
	require.ErrorIs(t, factors.Set([]any{2, "x"}), param.ErrKind)
	require.NoError(t, factors.Set([]any{8, 4.0, 1}))
	require.Equal(t, []int{8, 4, 1}, factors.Value())
}

func TestParameter_IntegerOverflowIsKindError(t *testing.T) {
	iters := param.NewParameter(testSchema()[1])

	require.ErrorIs(t, iters.Set(uint(math.MaxUint)), param.ErrKind)
	require.ErrorIs(t, iters.Set(uint64(math.MaxUint64)), param.ErrKind)
	require.ErrorIs(t, iters.Set(math.Exp2(63)), param.ErrKind)
	require.ErrorIs(t, iters.Set(math.Exp2(64)), param.ErrKind)
	require.Equal(t, 10, iters.Value())

	// the most negative int converts and then fails the range check
	require.ErrorIs(t, iters.Set(-math.Exp2(63)), param.ErrRange)
	require.NoError(t, iters.Set(uint(12)))
	require.Equal(t, 12, iters.Value())
}

func TestParameter_ListRangeAppliesToEveryElement(t *testing.T) {
	p := param.NewParameter(testSchema()[2])

	// only the last element is out of range
	err := p.Set([]int{4, 2, 0})
	require.ErrorIs(t, err, param.ErrRange)
	require.Equal(t, []int{4, 2, 1}, p.Value())
}

func TestParameter_ValueIsCopied(t *testing.T) {
	p := param.NewParameter(testSchema()[2])

	in := []int{3, 1}
	require.NoError(t, p.Set(in))
	in[0] = 99
	require.Equal(t, []int{3, 1}, p.Value())

	out := p.Value().([]int)
	out[1] = 99
	require.Equal(t, []int{3, 1}, p.Value())
}

func TestParameter_ConstructionTrustsDefault(t *testing.T) {
	p := param.NewParameter(param.Spec{Name: "x", Kind: param.KindInt, Range: param.Between(0, 1), Default: 5})
	require.Equal(t, 5, p.Value())
	require.ErrorIs(t, p.Set(5), param.ErrRange)
}

func TestConfig_UpdateIsFailFastInInputOrder(t *testing.T) {
	c := param.NewConfig("TestAlgorithm", testSchema())

	err := c.Update([]param.Assignment{
		{Name: "rate", Value: 0.9},
		{Name: "bogus", Value: 1},
		{Name: "iters", Value: 42},
	})
	require.ErrorIs(t, err, param.ErrUnknownParameter)
	require.Contains(t, err.Error(), "bogus")
	require.Contains(t, err.Error(), "TestAlgorithm")

	require.Equal(t, 0.9, c.Float("rate"))
	require.Equal(t, 10, c.Int("iters"))
}

func TestConfig_UpdateStopsAtFirstInvalidValue(t *testing.T) {
	c := param.NewConfig("TestAlgorithm", testSchema())

	err := c.Update([]param.Assignment{
		{Name: "iters", Value: 0},
		{Name: "rate", Value: 0.1},
	})
	require.ErrorIs(t, err, param.ErrRange)
	require.Equal(t, 10, c.Int("iters"))
	require.Equal(t, 0.5, c.Float("rate"))
}

func TestConfig_InstancesDoNotShareState(t *testing.T) {
	schema := testSchema()
	a := param.NewConfig("A", schema)
	b := param.NewConfig("A", schema)

	require.NoError(t, a.Set("factors", []int{2, 1}))
	require.Equal(t, []int{2, 1}, a.Ints("factors"))
	require.Equal(t, []int{4, 2, 1}, b.Ints("factors"))
	require.Equal(t, []int{4, 2, 1}, schema[2].Default)
}

func TestConfig_Accessors(t *testing.T) {
	c := param.NewConfig("A", testSchema())

	require.Equal(t, []string{"rate", "iters", "factors", "weights"}, c.Names())
	require.Equal(t, "A", c.Algorithm())

	spec, err := c.Describe("weights")
	require.NoError(t, err)
	require.Equal(t, param.KindFloatList, spec.Kind)
	require.Nil(t, spec.Range)
	require.Equal(t, []float64{0.25, 0.75}, c.Floats("weights"))

	_, err = c.Get("nope")
	require.ErrorIs(t, err, param.ErrUnknownParameter)
	require.NotContains(t, err.Error(), "did you mean")
	_, err = c.Describe("nope")
	require.ErrorIs(t, err, param.ErrUnknownParameter)

	err = c.Set("iter", 3)
	require.ErrorIs(t, err, param.ErrUnknownParameter)
	require.Contains(t, err.Error(), `did you mean "iters"`)

	require.Panics(t, func() { c.Int("rate") })
}

func TestAssignmentsFromMapIsSorted(t *testing.T) {
	got := param.AssignmentsFromMap(map[string]any{"b": 1, "a": 2, "c": 3})
	require.Equal(t, []param.Assignment{{Name: "a", Value: 2}, {Name: "b", Value: 1}, {Name: "c", Value: 3}}, got)
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in   string
		want param.Assignment
	}{
		{"num_iter=200", param.Assignment{Name: "num_iter", Value: 200}},
		{"sampling_rate=0.05", param.Assignment{Name: "sampling_rate", Value: 0.05}},
		{"shrink_factor=4,2,1", param.Assignment{Name: "shrink_factor", Value: []any{4, 2, 1}}},
		{"smooth_sigma=[2, 1, 0]", param.Assignment{Name: "smooth_sigma", Value: []any{2, 1, 0}}},
		{"shrink_factor=[1]", param.Assignment{Name: "shrink_factor", Value: []any{1}}},
		{"mode=fast", param.Assignment{Name: "mode", Value: "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := param.ParseAssignment(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := param.ParseAssignment("novalue")
	require.Error(t, err)
}

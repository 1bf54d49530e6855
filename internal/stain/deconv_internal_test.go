package stain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	tests := []struct {
		name   string
		v1, v2 [3]float64
		h, e   int
	}{
		{"first smaller", [3]float64{0.2, 0.9, 0.3}, [3]float64{0.6, 0.7, 0.4}, 0, 1},
		{"second smaller", [3]float64{0.6, 0.7, 0.4}, [3]float64{0.2, 0.9, 0.3}, 1, 0},
		{"tie goes to second", [3]float64{0.5, 0.1, 0.8}, [3]float64{0.5, 0.8, 0.1}, 1, 0},
		{"tie at zero", [3]float64{0, 0, 1}, [3]float64{0, 1, 0}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := assign(tt.v1, tt.v2)
			require.Equal(t, tt.h, h)
			require.Equal(t, tt.e, e)
		})
	}
}

package ethereum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampGas(t *testing.T) {
	cases := []struct {
		name string
		raw  uint64
		want uint64
	}{
		{"low estimate hits the floor", 50_000, GasFloor},
		{"simple transfer hits the floor", 21_000, GasFloor},
		{"above floor below threshold unchanged", 800_000, 800_000},
		{"threshold boundary unchanged", GasMarginThreshold, GasMarginThreshold},
		{"above threshold gains margin", 2_000_000, 2_400_000},
		{"huge estimate capped at ceiling", 10_000_000, GasCeiling},
		{"margin result capped at ceiling", 7_000_000, GasCeiling},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, ClampGas(c.raw))
		})
	}
}

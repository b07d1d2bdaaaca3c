package job

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifficultyZeroAndOneGiveMaxTarget(t *testing.T) {
	assert.Equal(t, 0, DifficultyToTarget(0).Cmp(maxTarget))
	assert.Equal(t, 0, DifficultyToTarget(1).Cmp(maxTarget))
}

func TestMaxTargetIsTheRealDifficultyOneTarget(t *testing.T) {
	want, ok := new(big.Int).SetString("00000000FFFF0000000000000000000000000000000000000000000000000000", 16)
	require.True(t, ok)
	assert.Equal(t, 0, maxTarget.Cmp(want))
}

func TestDifficultyTwoHalvesTarget(t *testing.T) {
	half := new(big.Int).Div(maxTarget, big.NewInt(2))
	assert.Equal(t, 0, DifficultyToTarget(2).Cmp(half))
}

func TestDifficultyToTargetIsMonotonicallyDecreasing(t *testing.T) {
	t1 := DifficultyToTarget(100)
	t2 := DifficultyToTarget(1000)
	assert.Equal(t, 1, t1.Cmp(t2)) // t1 > t2
}

package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGDeterminism(t *testing.T) {
	t.Run("SameSeedSameSequence", func(t *testing.T) {
		a := NewRNG(1234)
		b := NewRNG(1234)
		for i := 0; i < 50; i++ {
			require.Equal(t, a.U64(), b.U64())
		}
	})

	t.Run("ZeroSeedRemapped", func(t *testing.T) {
		r := NewRNG(0)
		assert.NotZero(t, r.State())
	})

	t.Run("StateRoundTrip", func(t *testing.T) {
		a := NewRNG(99)
		for i := 0; i < 10; i++ {
			a.U64()
		}
		saved := a.State()

		b := NewRNG(1)
		b.SetState(saved)
		for i := 0; i < 10; i++ {
			assert.Equal(t, a.U64(), b.U64())
		}
	})

	t.Run("F32InRange", func(t *testing.T) {
		r := NewRNG(7)
		for i := 0; i < 1000; i++ {
			v := r.F32(-1, 1)
			assert.GreaterOrEqual(t, v, float32(-1))
			assert.Less(t, v, float32(1))
		}
	})

	t.Run("UsizeInRange", func(t *testing.T) {
		r := NewRNG(7)
		for i := 0; i < 1000; i++ {
			v := r.Usize(5, 10)
			assert.GreaterOrEqual(t, v, 5)
			assert.Less(t, v, 10)
		}
	})
}

package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRWellFormedness(t *testing.T) {
	c := NewCSR(5)
	c.GrowUnits(0)
	c.appendEdge(0, 1, 0.1)
	c.appendEdge(0, 2, 0.2)
	c.appendEdge(1, 3, 0.3)

	require.Equal(t, 5, c.N())
	require.Equal(t, 3, c.E())
	assert.Equal(t, int32(c.E()), c.offsets[c.N()])
	assert.Equal(t, len(c.targets), len(c.weights))
	assert.Equal(t, len(c.targets), len(c.eligibility))
}

func TestCSRAddOrBump(t *testing.T) {
	t.Run("NewEdge", func(t *testing.T) {
		c := NewCSR(3)
		c.AddOrBump(0, 1, 0.5)
		var found bool
		c.Neighbors(0, func(target int, weight float32) {
			if target == 1 {
				found = true
				assert.InDelta(t, 0.5, weight, 1e-6)
			}
		})
		assert.True(t, found)
	})

	t.Run("ExistingEdgeBumps", func(t *testing.T) {
		c := NewCSR(3)
		c.AddOrBump(0, 1, 0.5)
		c.AddOrBump(0, 1, 0.5)
		var weight float32
		c.Neighbors(0, func(target int, w float32) {
			if target == 1 {
				weight = w
			}
		})
		assert.InDelta(t, 1.0, weight, 1e-6)
	})

	t.Run("ClampedToBounds", func(t *testing.T) {
		c := NewCSR(3)
		c.AddOrBump(0, 1, 10)
		var weight float32
		c.Neighbors(0, func(target int, w float32) { weight = w })
		assert.InDelta(t, 1.5, weight, 1e-6)
	})

	t.Run("ReusesTombstone", func(t *testing.T) {
		c := NewCSR(3)
		c.AddOrBump(0, 1, 0.1)
		slot := c.FindEdge(0, 1)
		c.targets[slot] = Invalid
		before := c.E()
		c.AddOrBump(0, 2, 0.2)
		assert.Equal(t, before, c.E())
	})
}

func TestCSRCompactionPreservesEdges(t *testing.T) {
	c := NewCSR(3)
	c.AddOrBump(0, 1, 0.3)
	c.AddOrBump(0, 2, 0.4)
	c.AddOrBump(1, 2, 0.5)

	c.targets[c.FindEdge(0, 1)] = Invalid

	c.Compact()

	assert.Equal(t, 3, c.N())
	assert.Equal(t, -1, c.FindEdge(0, 1))
	assert.GreaterOrEqual(t, c.FindEdge(0, 2), 0)
	assert.GreaterOrEqual(t, c.FindEdge(1, 2), 0)
	for _, tgt := range c.targets {
		assert.NotEqual(t, Invalid, tgt)
	}
}

func TestCSRFingerprintStability(t *testing.T) {
	c1 := NewCSR(3)
	c1.AddOrBump(0, 1, 0.1)
	c1.AddOrBump(1, 2, 0.2)

	c2 := NewCSR(3)
	c2.AddOrBump(0, 1, 0.9)
	c2.AddOrBump(1, 2, 0.9)

	assert.Equal(t, c1.Fingerprint(), c2.Fingerprint(), "fingerprint depends on structure, not weights")

	c2.AddOrBump(2, 0, 0.1)
	assert.NotEqual(t, c1.Fingerprint(), c2.Fingerprint())
}

func TestCSRGrowUnits(t *testing.T) {
	c := NewCSR(2)
	c.AddOrBump(0, 1, 0.1)
	c.GrowUnits(3)
	require.Equal(t, 5, c.N())
	assert.Equal(t, c.offsets[2], c.offsets[3])
	assert.Equal(t, c.offsets[2], c.offsets[4])
	assert.Equal(t, c.offsets[2], c.offsets[5])
}

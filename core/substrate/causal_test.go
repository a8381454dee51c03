package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCausalStrengthSign(t *testing.T) {
	cm := newCausalMemory()

	// "spark" reliably precedes "flame"; "spark" never precedes "smoke".
	for i := 0; i < 20; i++ {
		cm.ObserveLagged([]uint32{1}, nil, 0.0, 0.5)             // spark(1) observed
		cm.ObserveLagged([]uint32{2}, [][]uint32{{1}}, 0.0, 0.5) // flame(2) follows spark(1)
	}
	for i := 0; i < 20; i++ {
		cm.ObserveLagged([]uint32{4}, nil, 0.0, 0.5)             // unrelated(4) observed
		cm.ObserveLagged([]uint32{3}, [][]uint32{{4}}, 0.0, 0.5) // smoke(3) follows unrelated(4)
	}

	assert.Greater(t, cm.Strength(1, 2), float32(0))
	assert.LessOrEqual(t, cm.Strength(1, 3), float32(0))
}

func TestCausalMemoryDecay(t *testing.T) {
	cm := newCausalMemory()
	cm.ObserveLagged([]uint32{1}, nil, 0.0, 0.5)
	before := cm.base[1]

	cm.ObserveLagged([]uint32{2}, [][]uint32{{1}}, 0.5, 0.5)
	assert.Less(t, cm.base[1], before)
}

func TestCausalTopKOutgoing(t *testing.T) {
	cm := newCausalMemory()
	cm.ObserveLagged([]uint32{1}, nil, 0, 0.5)
	cm.ObserveLagged([]uint32{2, 3}, [][]uint32{{1}}, 0, 0.5)
	cm.ObserveLagged([]uint32{2, 3}, [][]uint32{{1}}, 0, 0.5)

	top := cm.TopKOutgoing(1, 1)
	if assert.Len(t, top, 1) {
		assert.Contains(t, []uint32{2, 3}, top[0].To)
	}
}

func TestCausalMerge(t *testing.T) {
	a := newCausalMemory()
	a.base[1] = 1.0
	b := newCausalMemory()
	b.base[1] = 0.0

	a.Merge(b, 0.5)
	assert.InDelta(t, 0.5, a.base[1], 1e-6)
}

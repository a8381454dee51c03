package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTableInterning(t *testing.T) {
	st := newSymbolTable()

	a := st.Intern("alpha")
	b := st.Intern("beta")
	a2 := st.Intern("alpha")

	assert.Equal(t, a, a2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "alpha", st.Name(a))
	assert.Equal(t, "beta", st.Name(b))
	assert.Equal(t, 2, st.Len())

	_, ok := st.Lookup("gamma")
	assert.False(t, ok)
	id, ok := st.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, a, id)
}

func TestPairSymbolBuildsAndInternsName(t *testing.T) {
	st := newSymbolTable()

	id, ok := st.PairSymbol("cat", "jump")
	require.True(t, ok)
	assert.Equal(t, "pair::cat::jump", st.Name(id))

	id2, ok := st.PairSymbol("cat", "jump")
	require.True(t, ok)
	assert.Equal(t, id, id2)
}

func TestBuildCompoundOverflow(t *testing.T) {
	var buf [compoundBufSize]byte
	long := make([]byte, compoundBufSize)
	for i := range long {
		long[i] = 'x'
	}
	_, ok := buildCompound(&buf, "prefix", string(long))
	assert.False(t, ok)
}

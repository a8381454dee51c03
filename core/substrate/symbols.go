package substrate

// SymbolTable interns strings to 32-bit ids on demand. Entries are never
// removed; ids are stable for the table's lifetime.
type SymbolTable struct {
	names map[string]uint32
	ids   []string // ids[id] = name, index-addressed
}

// reservedRewardPos / reservedRewardNeg are the well-known reward symbols
// allocated at construction and guaranteed present after load.
const (
	reservedRewardPosName = "reward_pos"
	reservedRewardNegName = "reward_neg"
)

func newSymbolTable() *SymbolTable {
	st := &SymbolTable{
		names: make(map[string]uint32),
		ids:   make([]string, 0, 16),
	}
	return st
}

// Intern returns the id for name, creating one if it does not yet exist.
func (st *SymbolTable) Intern(name string) uint32 {
	if id, ok := st.names[name]; ok {
		return id
	}
	id := uint32(len(st.ids))
	st.ids = append(st.ids, name)
	st.names[name] = id
	return id
}

// Lookup returns the id for name without interning, and whether it exists.
func (st *SymbolTable) Lookup(name string) (uint32, bool) {
	id, ok := st.names[name]
	return id, ok
}

// Name returns the string for an id. Panics if out of range, as ids are
// only ever handed out by Intern.
func (st *SymbolTable) Name(id uint32) string { return st.ids[id] }

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int { return len(st.ids) }

// compoundBufSize bounds the stack buffer used to build compound symbol
// names without heap allocation on the hot path.
const compoundBufSize = 256

// buildCompound writes "prefix::a::b::..." into buf and returns the
// resulting slice. Returns ok=false (and the operation must be skipped,
// not fall back to an allocating path) if the name would not fit.
func buildCompound(buf *[compoundBufSize]byte, prefix string, parts ...string) ([]byte, bool) {
	n := copy(buf[:], prefix)
	for _, p := range parts {
		if n+2 > compoundBufSize {
			return nil, false
		}
		n += copy(buf[n:], "::")
		if n+len(p) > compoundBufSize {
			return nil, false
		}
		n += copy(buf[n:], p)
	}
	return buf[:n], true
}

// PairSymbol builds "pair::<stimulus>::<action>" and interns it, or reports
// ok=false if the name overflows the stack buffer (the caller must then
// skip the causal update that would have used it).
func (st *SymbolTable) PairSymbol(stimulus, action string) (uint32, bool) {
	var buf [compoundBufSize]byte
	b, ok := buildCompound(&buf, "pair", stimulus, action)
	if !ok {
		return 0, false
	}
	return st.Intern(string(b)), true
}

package substrate

// Invalid marks a tombstoned CSR slot: the slot exists but is logically
// absent until compaction reclaims it.
const Invalid int32 = -1

// CSR is the compressed sparse row adjacency of the unit graph. Storage is
// a single contiguous allocation per parallel array plus offsets; unit
// indices never move, only the edge arrays do.
//
// Invariants: offsets is monotone non-decreasing, offsets[N] == len(targets),
// len(targets) == len(weights) == len(eligibility).
type CSR struct {
	offsets     []int32
	targets     []int32
	weights     []float32
	eligibility []float32
}

// NewCSR builds an empty CSR for n units.
func NewCSR(n int) *CSR {
	return &CSR{offsets: make([]int32, n+1)}
}

// N returns the number of units (rows).
func (c *CSR) N() int { return len(c.offsets) - 1 }

// E returns the total number of edge slots, including tombstones.
func (c *CSR) E() int { return len(c.targets) }

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Neighbors calls fn for every non-tombstoned outgoing edge of unit i, in
// storage order.
func (c *CSR) Neighbors(i int, fn func(target int, weight float32)) {
	start, end := c.offsets[i], c.offsets[i+1]
	for k := start; k < end; k++ {
		if c.targets[k] == Invalid {
			continue
		}
		fn(int(c.targets[k]), c.weights[k])
	}
}

// NeighborsIdx calls fn with the slot index as well, for callers (plasticity,
// forget/prune) that need to mutate weight/eligibility in place.
func (c *CSR) NeighborsIdx(i int, fn func(slot int, target int, weight float32)) {
	start, end := c.offsets[i], c.offsets[i+1]
	for k := start; k < end; k++ {
		if c.targets[k] == Invalid {
			continue
		}
		fn(int(k), int(c.targets[k]), c.weights[k])
	}
}

// FindEdge returns the slot index of edge o->t, or -1 if absent.
func (c *CSR) FindEdge(o, t int) int {
	start, end := c.offsets[o], c.offsets[o+1]
	for k := start; k < end; k++ {
		if int(c.targets[k]) == t {
			return int(k)
		}
	}
	return -1
}

// findTombstone returns a tombstoned slot in o's segment, or -1.
func (c *CSR) findTombstone(o int) int {
	start, end := c.offsets[o], c.offsets[o+1]
	for k := start; k < end; k++ {
		if c.targets[k] == Invalid {
			return int(k)
		}
	}
	return -1
}

// AddOrBump implements the spec's add_or_bump: if edge o->t exists, its
// weight is incremented by delta and clamped. Otherwise a tombstone in o's
// segment is reused, or (last resort) the edge is appended, an O(E)
// operation that shifts every slot after o's segment.
func (c *CSR) AddOrBump(o, t int, delta float32) {
	if slot := c.FindEdge(o, t); slot >= 0 {
		c.weights[slot] = clampF32(c.weights[slot]+delta, -1.5, 1.5)
		return
	}
	if slot := c.findTombstone(o); slot >= 0 {
		c.targets[slot] = int32(t)
		c.weights[slot] = clampF32(delta, -1.5, 1.5)
		c.eligibility[slot] = 0
		return
	}
	c.appendEdge(o, t, clampF32(delta, -1.5, 1.5))
}

// appendEdge inserts a brand new edge at the end of o's segment, shifting
// all later segments right by one slot.
func (c *CSR) appendEdge(o, t int, weight float32) {
	pos := c.offsets[o+1]
	c.targets = append(c.targets, 0)
	c.weights = append(c.weights, 0)
	c.eligibility = append(c.eligibility, 0)
	copy(c.targets[pos+1:], c.targets[pos:len(c.targets)-1])
	copy(c.weights[pos+1:], c.weights[pos:len(c.weights)-1])
	copy(c.eligibility[pos+1:], c.eligibility[pos:len(c.eligibility)-1])
	c.targets[pos] = int32(t)
	c.weights[pos] = weight
	c.eligibility[pos] = 0
	for j := o + 1; j < len(c.offsets); j++ {
		c.offsets[j]++
	}
}

// GrowUnits appends n fresh empty segments (no edges) for newly created
// units, preserving all existing indices and edges.
func (c *CSR) GrowUnits(n int) {
	last := c.offsets[len(c.offsets)-1]
	for i := 0; i < n; i++ {
		c.offsets = append(c.offsets, last)
	}
}

// TombstoneFraction returns the share of edge slots that are tombstoned.
func (c *CSR) TombstoneFraction() float32 {
	if len(c.targets) == 0 {
		return 0
	}
	dead := 0
	for _, t := range c.targets {
		if t == Invalid {
			dead++
		}
	}
	return float32(dead) / float32(len(c.targets))
}

// Compact rebuilds the arrays skipping tombstones. Eligibility is preserved
// per surviving edge; unit indices (offsets boundaries) are preserved.
func (c *CSR) Compact() {
	n := c.N()
	newOffsets := make([]int32, n+1)
	newTargets := make([]int32, 0, len(c.targets))
	newWeights := make([]float32, 0, len(c.weights))
	newElig := make([]float32, 0, len(c.eligibility))

	for i := 0; i < n; i++ {
		newOffsets[i] = int32(len(newTargets))
		start, end := c.offsets[i], c.offsets[i+1]
		for k := start; k < end; k++ {
			if c.targets[k] == Invalid {
				continue
			}
			newTargets = append(newTargets, c.targets[k])
			newWeights = append(newWeights, c.weights[k])
			newElig = append(newElig, c.eligibility[k])
		}
	}
	newOffsets[n] = int32(len(newTargets))

	c.offsets = newOffsets
	c.targets = newTargets
	c.weights = newWeights
	c.eligibility = newElig
}

// ShouldCompact applies the spec's compaction policy: every 1000 steps, or
// when tombstones exceed 25% and age is a multiple of 64.
func (c *CSR) ShouldCompact(ageSteps int64) bool {
	if ageSteps%1000 == 0 {
		return true
	}
	if ageSteps%64 == 0 && c.TombstoneFraction() > 0.25 {
		return true
	}
	return false
}

// Fingerprint is a deterministic 64-bit hash over (N, E, targets), used to
// gate cross-brain delta transfers: identical fingerprints imply identical
// edge-index semantics.
func (c *CSR) Fingerprint() uint64 {
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211
	}
	mix(uint64(c.N()))
	mix(uint64(c.E()))
	for _, t := range c.targets {
		mix(uint64(uint32(t)))
	}
	return h
}

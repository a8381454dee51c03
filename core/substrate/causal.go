package substrate

// edgeKey packs a directed symbol pair into a single map key.
func edgeKey(from, to uint32) uint64 {
	return uint64(from)<<32 | uint64(to)
}

// CausalMemory maintains decayed co-occurrence and directed temporal
// associations between symbols. It is the second-order symbolic layer
// paired with the sub-symbolic dynamics substrate.
type CausalMemory struct {
	base  map[uint32]float32
	edges map[uint64]float32
}

func newCausalMemory() *CausalMemory {
	return &CausalMemory{
		base:  make(map[uint32]float32),
		edges: make(map[uint64]float32),
	}
}

func (cm *CausalMemory) decayAll(keep float32) {
	for k, v := range cm.base {
		nv := v * keep
		if nv < 1e-6 {
			delete(cm.base, k)
			continue
		}
		cm.base[k] = nv
	}
	for k, v := range cm.edges {
		nv := v * keep
		if nv < 1e-6 {
			delete(cm.edges, k)
			continue
		}
		cm.edges[k] = nv
	}
}

// ObserveLagged folds one observation into the memory: decays all entries,
// increments the base count of every symbol in current, then adds a
// directed edge from every symbol in the immediately-prior committed set
// (weight 1) and from each lag-k>=2 historical set (weight lagDecay^(k-1))
// to every symbol in current.
func (cm *CausalMemory) ObserveLagged(current []uint32, history [][]uint32, decay, lagDecay float32) {
	cm.decayAll(1 - decay)

	for _, s := range current {
		cm.base[s] += 1
	}

	if len(history) > 0 {
		prev := history[0]
		for _, a := range prev {
			for _, b := range current {
				cm.edges[edgeKey(a, b)] += 1
			}
		}
		for k := 1; k < len(history); k++ {
			w := float32(1)
			for i := 0; i < k; i++ {
				w *= lagDecay
			}
			for _, a := range history[k] {
				for _, b := range current {
					cm.edges[edgeKey(a, b)] += w
				}
			}
		}
	}
}

func (cm *CausalMemory) totalCount() float32 {
	var sum float32
	for _, v := range cm.base {
		sum += v
	}
	if sum < 1 {
		return 1
	}
	return sum
}

// Strength computes the causal strength of a -> b: clamp(P(b|a) - P(b), -1, 1).
func (cm *CausalMemory) Strength(a, b uint32) float32 {
	total := cm.totalCount()
	pb := cm.base[b] / total

	baseA := cm.base[a]
	var pBGivenA float32
	if baseA > 0 {
		pBGivenA = cm.edges[edgeKey(a, b)] / baseA
	}
	return clampF32(pBGivenA-pb, -1, 1)
}

// OutgoingEdge pairs a target symbol with its causal strength from a fixed
// source, for explainability queries.
type OutgoingEdge struct {
	To       uint32
	Strength float32
}

// TopKOutgoing returns the k strongest outgoing edges from a, by causal
// strength descending.
func (cm *CausalMemory) TopKOutgoing(a uint32, k int) []OutgoingEdge {
	return cm.FilteredOutgoing(a, k, func(OutgoingEdge) bool { return true })
}

// FilteredOutgoing returns up to k outgoing edges from a satisfying keep,
// ranked by causal strength descending.
func (cm *CausalMemory) FilteredOutgoing(a uint32, k int, keep func(OutgoingEdge) bool) []OutgoingEdge {
	seen := make(map[uint32]bool)
	out := make([]OutgoingEdge, 0)
	for key := range cm.edges {
		from := uint32(key >> 32)
		if from != a {
			continue
		}
		to := uint32(key)
		if seen[to] {
			continue
		}
		seen[to] = true
		e := OutgoingEdge{To: to, Strength: cm.Strength(a, to)}
		if keep(e) {
			out = append(out, e)
		}
	}
	// insertion sort descending by strength — edge counts per symbol are small
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Strength < out[j].Strength {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Merge blends other into cm by EMA at the given rate: new = (1-rate)*cm + rate*other.
func (cm *CausalMemory) Merge(other *CausalMemory, rate float32) {
	if rate <= 0 {
		return
	}
	if rate > 1 {
		rate = 1
	}
	keys := make(map[uint32]bool)
	for k := range cm.base {
		keys[k] = true
	}
	for k := range other.base {
		keys[k] = true
	}
	for k := range keys {
		cm.base[k] = (1-rate)*cm.base[k] + rate*other.base[k]
		if cm.base[k] < 1e-6 {
			delete(cm.base, k)
		}
	}

	ekeys := make(map[uint64]bool)
	for k := range cm.edges {
		ekeys[k] = true
	}
	for k := range other.edges {
		ekeys[k] = true
	}
	for k := range ekeys {
		cm.edges[k] = (1-rate)*cm.edges[k] + rate*other.edges[k]
		if cm.edges[k] < 1e-6 {
			delete(cm.edges, k)
		}
	}
}

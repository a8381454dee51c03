package substrate

import "math"

// NoGroup marks a unit that belongs to no group.
const NoGroup int32 = -1

// Units is the struct-of-arrays store of per-unit scalar state. Identity is
// the stable integer index into every slice; neurogenesis appends, nothing
// is ever reordered or removed.
type Units struct {
	Amp      []float32
	Phase    []float32
	Bias     []float32
	Decay    []float32
	Salience []float32
	Trace    []float32 // activity trace τ

	Reserved        []bool // concept units / engram anchors; cannot join a group
	LearningEnabled []bool
	GroupOf         []int32 // index into Brain.groups, or NoGroup
}

func newUnits(n int, rng *RNG) *Units {
	u := &Units{
		Amp:             make([]float32, n),
		Phase:           make([]float32, n),
		Bias:            make([]float32, n),
		Decay:           make([]float32, n),
		Salience:        make([]float32, n),
		Trace:           make([]float32, n),
		Reserved:        make([]bool, n),
		LearningEnabled: make([]bool, n),
		GroupOf:         make([]int32, n),
	}
	for i := 0; i < n; i++ {
		u.Phase[i] = rng.F32(-math.Pi, math.Pi)
		u.Decay[i] = 0.05
		u.LearningEnabled[i] = true
		u.GroupOf[i] = NoGroup
	}
	return u
}

func (u *Units) N() int { return len(u.Amp) }

// Append grows every parallel array by one fresh unit, used by neurogenesis.
func (u *Units) Append(amp, phase, bias, decay float32) int {
	idx := len(u.Amp)
	u.Amp = append(u.Amp, amp)
	u.Phase = append(u.Phase, phase)
	u.Bias = append(u.Bias, bias)
	u.Decay = append(u.Decay, decay)
	u.Salience = append(u.Salience, 0)
	u.Trace = append(u.Trace, 0)
	u.Reserved = append(u.Reserved, false)
	u.LearningEnabled = append(u.LearningEnabled, true)
	u.GroupOf = append(u.GroupOf, NoGroup)
	return idx
}

func wrapPhase(p float32) float32 {
	const twoPi = 2 * math.Pi
	for p > math.Pi {
		p -= twoPi
	}
	for p <= -math.Pi {
		p += twoPi
	}
	return p
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func absf(a float32) float32 {
	if a < 0 {
		return -a
	}
	return a
}

package substrate

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"
)

// ActionScore is the full breakdown behind one action's readout score.
type ActionScore struct {
	Action            string
	Habit             float32
	GlobalMeaning      float32
	ConditionalMeaning float32
	Score             float32
}

func (b *Brain) habit(g *Group) float32 {
	if len(g.Members) == 0 {
		return 0
	}
	var sum float32
	for _, m := range g.Members {
		sum += maxf(b.units.Amp[m], 0)
	}
	return clampF32(sum/(2*float32(len(g.Members))), 0, 1)
}

func (b *Brain) globalMeaning(actionSym uint32) float32 {
	return b.causal.Strength(actionSym, b.rewardPosID) - b.causal.Strength(actionSym, b.rewardNegID)
}

func (b *Brain) conditionalMeaning(stimulus, action string) float32 {
	pairSym, ok := b.symbols.PairSymbol(stimulus, action)
	if !ok {
		return 0
	}
	return b.causal.Strength(pairSym, b.rewardPosID) - b.causal.Strength(pairSym, b.rewardNegID)
}

// ActionScoreBreakdown computes the full habit/meaning decomposition for
// one action group against a stimulus, per §4.11.
func (b *Brain) ActionScoreBreakdown(stimulus, action string, alpha float32) ActionScore {
	g := b.FindGroup(action)
	if g == nil || g.Kind != KindAction {
		return ActionScore{Action: action}
	}
	actionSym := b.symbols.Intern(action)
	hab := b.habit(g)
	global := b.globalMeaning(actionSym)
	cond := b.conditionalMeaning(stimulus, action)
	score := 0.5*hab + alpha*(cond+0.15*global)
	return ActionScore{Action: action, Habit: hab, GlobalMeaning: global, ConditionalMeaning: cond, Score: score}
}

// RankedActionsWithMeaning scores every action group against stimulus and
// returns them sorted by score descending.
func (b *Brain) RankedActionsWithMeaning(stimulus string, alpha float32) []ActionScore {
	names := b.GroupsByKind(KindAction)
	out := make([]ActionScore, 0, len(names))
	for _, n := range names {
		out = append(out, b.ActionScoreBreakdown(stimulus, n, alpha))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SelectActionWithMeaning returns the highest-scoring action for stimulus,
// and its score. Returns ("", 0) if there are no action groups.
func (b *Brain) SelectActionWithMeaning(stimulus string, alpha float32) (string, float32) {
	ranked := b.RankedActionsWithMeaning(stimulus, alpha)
	if len(ranked) == 0 {
		return "", 0
	}
	return ranked[0].Action, ranked[0].Score
}

// MeaningHint is a convenience wrapper returning only the top action name.
func (b *Brain) MeaningHint(stimulus string) string {
	name, _ := b.SelectActionWithMeaning(stimulus, 1.0)
	return name
}

// PredictNextContext returns the topK symbols most likely to follow
// contextSymbol, ranked by causal strength — the engine's approximation of
// P(next | context).
func (b *Brain) PredictNextContext(contextSymbol string, topK int) []OutgoingEdge {
	sym, ok := b.symbols.Lookup(contextSymbol)
	if !ok {
		return nil
	}
	return b.causal.TopKOutgoing(sym, topK)
}

// RankedActionsWithPrediction extends RankedActionsWithMeaning with a
// predictive term: predWeight * Σ_c P(c|pair)·value(c), summed over
// context symbols whose interned name carries contextPrefix, where
// value(c) is c's own global meaning (strength to reward_pos minus
// reward_neg).
func (b *Brain) RankedActionsWithPrediction(stimulus string, alpha, predWeight float32, contextPrefix string) []ActionScore {
	base := b.RankedActionsWithMeaning(stimulus, alpha)
	for i := range base {
		pairSym, ok := b.symbols.PairSymbol(stimulus, base[i].Action)
		if !ok {
			continue
		}
		var pred float32
		pairBase := b.causal.base[pairSym]
		for _, e := range b.causal.TopKOutgoing(pairSym, 0) {
			name := b.symbols.Name(e.To)
			if len(name) < len(contextPrefix) || name[:len(contextPrefix)] != contextPrefix {
				continue
			}
			if pairBase <= 0 {
				continue
			}
			pCGivenPair := b.causal.edges[edgeKey(pairSym, e.To)] / pairBase
			pred += pCGivenPair * b.globalMeaning(e.To)
		}
		base[i].Score += predWeight * pred
	}
	sort.SliceStable(base, func(i, j int) bool { return base[i].Score > base[j].Score })
	return base
}

// OscillationSample is a read-only, by-value snapshot of amplitude/phase
// for diagnostics.
type OscillationSample struct {
	Amplitudes []float32
	Phases     []float32
	Step       int64
}

func (b *Brain) OscillationSample() OscillationSample {
	return OscillationSample{
		Amplitudes: append([]float32(nil), b.units.Amp...),
		Phases:     append([]float32(nil), b.units.Phase...),
		Step:       b.ageSteps,
	}
}

// AmplitudeStats summarizes the current amplitude distribution across all
// units, for dashboards and the inspect CLI. Mean/StdDev are computed with
// gonum/stat rather than by hand, matching the rest of the pack's reliance
// on it for diagnostic statistics.
type AmplitudeStats struct {
	Mean   float32
	StdDev float32
}

func (b *Brain) AmplitudeStats() AmplitudeStats {
	n := b.units.N()
	if n == 0 {
		return AmplitudeStats{}
	}
	vals := make([]float64, n)
	for i, a := range b.units.Amp {
		vals[i] = float64(a)
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return AmplitudeStats{Mean: float32(mean), StdDev: float32(std)}
}

// UnitPlotSample is a read-only snapshot of one unit's scalar state.
type UnitPlotSample struct {
	Index    int
	Amp      float32
	Phase    float32
	Salience float32
}

func (b *Brain) UnitPlotSamples(indices []int) []UnitPlotSample {
	out := make([]UnitPlotSample, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= b.units.N() {
			continue
		}
		out = append(out, UnitPlotSample{
			Index:    i,
			Amp:      b.units.Amp[i],
			Phase:    b.units.Phase[i],
			Salience: b.units.Salience[i],
		})
	}
	return out
}

// CausalGraphEdge is one edge of a causal-graph snapshot for visualization.
type CausalGraphEdge struct {
	From     string
	To       string
	Strength float32
}

// CausalGraphViz is a read-only snapshot of the causal memory, in symbol
// names, for external graph-visualization layout (out of scope here).
type CausalGraphViz struct {
	Nodes []string
	Edges []CausalGraphEdge
}

// EncodeSnapshot msgpack-encodes a diagnostic value (ActionScore,
// LearningMonitor, OscillationSample, UnitPlotSample, CausalGraphViz) for
// shipping to an out-of-process consumer verbatim, the same wire form the
// image codec already uses for persisted state.
func EncodeSnapshot(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (b *Brain) CausalGraphVizSnapshot() CausalGraphViz {
	out := CausalGraphViz{Nodes: make([]string, 0, b.symbols.Len())}
	for i := 0; i < b.symbols.Len(); i++ {
		out.Nodes = append(out.Nodes, b.symbols.Name(uint32(i)))
	}
	for i := 0; i < b.symbols.Len(); i++ {
		for _, e := range b.causal.TopKOutgoing(uint32(i), 0) {
			if e.Strength == 0 {
				continue
			}
			out.Edges = append(out.Edges, CausalGraphEdge{
				From:     b.symbols.Name(uint32(i)),
				To:       b.symbols.Name(e.To),
				Strength: e.Strength,
			})
		}
	}
	return out
}

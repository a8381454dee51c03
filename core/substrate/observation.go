package substrate

// apply_stimulus / step / note_action / reinforce_action /
// set_neuromodulator / commit_observation form the ordered per-tick
// contract of §4.10. Unknown sensor/action names are no-ops by design —
// integrators may register groups lazily and the hot path stays branchless.

func (b *Brain) ensurePendingInput() {
	if len(b.pendingInput) != b.units.N() {
		grown := make([]float32, b.units.N())
		copy(grown, b.pendingInput)
		b.pendingInput = grown
	}
}

// ApplyStimulus deposits strength into the pending input of every unit in
// the named sensor group, records the stimulus symbol as active for this
// tick, and triggers imprinting for a novel strong presentation.
func (b *Brain) ApplyStimulus(name string, strength float32) {
	b.ensurePendingInput()
	g := b.FindGroup(name)
	if g == nil || g.Kind != KindSensor {
		return
	}
	for _, m := range g.Members {
		b.pendingInput[m] += strength
	}
	sym := b.symbols.Intern(name)
	b.activeSymbols = append(b.activeSymbols, sym)

	if strength >= 0.4 && b.existingConceptCoupling(g) < b.cfg.ImprintRate*0.7 {
		b.imprint(g)
	}
}

// existingConceptCoupling averages |weight| from a group's members to any
// reserved, group-less "concept" unit already wired to them.
func (b *Brain) existingConceptCoupling(g *Group) float32 {
	var sum float32
	var n int
	for _, m := range g.Members {
		b.csr.Neighbors(int(m), func(t int, w float32) {
			if b.units.Reserved[t] && b.units.GroupOf[t] == NoGroup {
				sum += absf(w)
				n++
			}
		})
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

// imprint creates bidirectional edges between g's sensor units and a freshly
// reserved "concept" unit: a one-shot association for a novel strong
// stimulus.
func (b *Brain) imprint(g *Group) {
	concept := b.quietestUnreserved(1)
	if len(concept) == 0 {
		return
	}
	c := concept[0]
	b.units.Reserved[c] = true
	b.units.Bias[c] = maxf(b.units.Bias[c], 0.05)
	for _, m := range g.Members {
		b.csr.AddOrBump(int(m), int(c), b.cfg.ImprintRate)
		b.csr.AddOrBump(int(c), int(m), b.cfg.ImprintRate)
	}
}

// Step runs one full integration tick: dynamics, eligibility, plasticity
// commit, forget/prune, growth-signal bookkeeping, and homeostasis, in
// that order (§5's ordering guarantee).
func (b *Brain) Step() {
	b.ensurePendingInput()
	b.runDynamics()
	for i := range b.pendingInput {
		b.pendingInput[i] = 0
	}

	b.updateEligibility()
	b.commitPlasticity()
	b.forgetAndPrune()
	b.updateGrowthSignals()
	b.applyHomeostasis()
	b.maybeCompact()

	b.ageSteps++
}

// NoteAction records an action symbol as active for this tick. Unknown
// action names are a no-op.
func (b *Brain) NoteAction(name string) {
	g := b.FindGroup(name)
	if g == nil || g.Kind != KindAction {
		return
	}
	b.activeSymbols = append(b.activeSymbols, b.symbols.Intern(name))
}

// NoteCompoundSymbol builds and records a "prefix::a::b::..." symbol. If
// the name would overflow the allocation-free stack buffer, the operation
// is skipped rather than falling back to an allocating path.
func (b *Brain) NoteCompoundSymbol(prefix string, parts ...string) {
	var buf [compoundBufSize]byte
	name, ok := buildCompound(&buf, prefix, parts...)
	if !ok {
		return
	}
	b.activeSymbols = append(b.activeSymbols, b.symbols.Intern(string(name)))
}

// ReinforceAction adjusts every unit in the named action group's bias by
// clamp(delta*0.01, ±0.5). Unknown action names are a no-op.
func (b *Brain) ReinforceAction(name string, delta float32) {
	g := b.FindGroup(name)
	if g == nil || g.Kind != KindAction {
		return
	}
	adj := clampF32(delta*0.01, -0.5, 0.5)
	for _, m := range g.Members {
		b.units.Bias[m] = clampF32(b.units.Bias[m]+adj, -0.5, 0.5)
	}
}

// SetNeuromodulator clamps and stores v. It is read by the plasticity
// commit of the Step call that follows and by the next CommitObservation;
// eligibility formation does not read it.
func (b *Brain) SetNeuromodulator(v float32) {
	b.neuromod = clampF32(v, -1, 1)
}

// Neuromodulator returns the currently stored neuromodulator value.
func (b *Brain) Neuromodulator() float32 { return b.neuromod }

func dedupCapped(symbols []uint32, cap int) []uint32 {
	seen := make(map[uint32]bool, len(symbols))
	out := make([]uint32, 0, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if cap > 0 && len(out) >= cap {
			break
		}
	}
	return out
}

// CommitObservation folds the reward symbol in based on neuromod
// sign/threshold, dedups and caps the tick's active symbol set, runs the
// router, performs the lagged causal update, rotates lag history, retires
// any latent modules whose lifecycle has expired, and clears the active
// set.
func (b *Brain) CommitObservation() {
	symbols := append([]uint32(nil), b.activeSymbols...)
	if b.neuromod > b.cfg.LearningDeadband {
		symbols = append(symbols, b.rewardPosID)
	} else if b.neuromod < -b.cfg.LearningDeadband {
		symbols = append(symbols, b.rewardNegID)
	}
	committed := dedupCapped(symbols, b.cfg.CausalSymbolCap)

	b.route(committed)
	b.causal.ObserveLagged(committed, b.lagHistory, b.cfg.CausalDecay, b.cfg.CausalLagDecay)
	b.retireLatentModules()

	maxHist := b.cfg.CausalLagSteps - 1
	if maxHist < 0 {
		maxHist = 0
	}
	b.lagHistory = append([][]uint32{committed}, b.lagHistory...)
	if len(b.lagHistory) > maxHist {
		b.lagHistory = b.lagHistory[:maxHist]
	}

	b.activeSymbols = b.activeSymbols[:0]
}

// DiscardObservation performs the same per-tick telemetry bookkeeping as
// CommitObservation without touching causal memory or routing state.
func (b *Brain) DiscardObservation() {
	b.activeSymbols = b.activeSymbols[:0]
}

// Dream runs an offline consolidation period: steps ticks with noise
// scaled by noiseBoost and hebb_rate scaled by lrBoost, with pending input
// cleared each tick and no causal-memory mutation (each dream tick behaves
// like DiscardObservation).
func (b *Brain) Dream(steps int, lrBoost, noiseBoost float32) {
	origNoiseAmp, origNoisePhase, origHebb := b.cfg.NoiseAmp, b.cfg.NoisePhase, b.cfg.HebbRate
	b.cfg.NoiseAmp *= noiseBoost
	b.cfg.NoisePhase *= noiseBoost
	b.cfg.HebbRate *= lrBoost
	defer func() {
		b.cfg.NoiseAmp = origNoiseAmp
		b.cfg.NoisePhase = origNoisePhase
		b.cfg.HebbRate = origHebb
	}()

	for s := 0; s < steps; s++ {
		b.ensurePendingInput()
		for i := range b.pendingInput {
			b.pendingInput[i] = 0
		}
		b.Step()
		b.DiscardObservation()
	}
}

// AttentionGate ranks non-reserved units by salience and zeroes the
// pending input of the bottom (1 - topFraction) share before the next
// Step, returning the number of units gated.
func (b *Brain) AttentionGate(topFraction float32) int {
	b.ensurePendingInput()
	n := b.units.N()
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !b.units.Reserved[i] {
			idx = append(idx, i)
		}
	}
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && b.units.Salience[idx[j-1]] < b.units.Salience[idx[j]] {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			j--
		}
	}
	keep := int(float32(len(idx)) * clampF32(topFraction, 0, 1))
	gated := 0
	for i := keep; i < len(idx); i++ {
		b.pendingInput[idx[i]] = 0
		gated++
	}
	return gated
}

// ForceAssociate directly bumps bidirectional edges between every member
// of group A and every member of group B, bypassing eligibility and
// plasticity entirely — a manual wiring hook for embedders.
func (b *Brain) ForceAssociate(groupA, groupB []int32, strength float32) {
	for _, a := range groupA {
		for _, bb := range groupB {
			if a == bb {
				continue
			}
			b.csr.AddOrBump(int(a), int(bb), strength)
			b.csr.AddOrBump(int(bb), int(a), strength)
		}
	}
}

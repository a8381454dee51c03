package substrate

import "math"

// isEngramEdge reports whether edge o->t connects a sensor-group unit to a
// reserved "concept" unit (reserved, but a member of no group) in either
// direction. Engram edges are protected from outright pruning.
func (b *Brain) isEngramEdge(o, t int) bool {
	oSensor := b.units.GroupOf[o] != NoGroup && b.groups[b.units.GroupOf[o]].Kind == KindSensor
	tSensor := b.units.GroupOf[t] != NoGroup && b.groups[b.units.GroupOf[t]].Kind == KindSensor
	oConcept := b.units.Reserved[o] && b.units.GroupOf[o] == NoGroup
	tConcept := b.units.Reserved[t] && b.units.GroupOf[t] == NoGroup
	return (oSensor && tConcept) || (oConcept && tSensor)
}

func (b *Brain) crossModule(o, t int) bool {
	om, oHas := b.unitModule(o)
	tm, tHas := b.unitModule(t)
	return oHas && tHas && om != tm
}

// forgetAndPrune applies per-edge decay, then tombstones edges whose
// magnitude falls below the prune threshold, exempting (but clamping)
// engram edges.
func (b *Brain) forgetAndPrune() {
	pruneBelow := b.cfg.PruneBelow
	crossBonus := b.cfg.CrossModulePruneBonus
	baseDecay := 1 - b.cfg.ForgetRate
	crossDecay := clampF32(1-b.cfg.ForgetRate-b.cfg.CrossModuleForgetBoost, 0, 1)

	n := b.units.N()
	var pruned, total int
	for o := 0; o < n; o++ {
		start, end := b.csr.offsets[o], b.csr.offsets[o+1]
		for k := start; k < end; k++ {
			if b.csr.targets[k] == Invalid {
				continue
			}
			t := int(b.csr.targets[k])
			total++
			cross := b.crossModule(o, t)
			decay := baseDecay
			thresh := pruneBelow
			if cross {
				decay = crossDecay
				thresh = pruneBelow + crossBonus
			}
			w := b.csr.weights[k] * decay

			if absf(w) < thresh {
				if b.isEngramEdge(o, t) {
					if w < 0 {
						w = -pruneBelow
					} else {
						w = pruneBelow
					}
				} else {
					b.csr.targets[k] = Invalid
					b.csr.eligibility[k] = 0
					pruned++
					continue
				}
			}
			b.csr.weights[k] = w
		}
	}
	if total > 0 {
		rate := float32(pruned) / float32(total)
		a := b.cfg.GrowthSignalAlpha
		b.growthEMAPruneRate = (1-a)*b.growthEMAPruneRate + a*rate
	}
}

// maybeCompact runs CSR compaction when the spec's cadence policy fires.
func (b *Brain) maybeCompact() {
	if b.csr.ShouldCompact(b.ageSteps) {
		b.csr.Compact()
	}
}

// applyHomeostasis nudges each non-reserved unit's bias toward the target
// amplitude, every HomeostasisEvery ticks.
func (b *Brain) applyHomeostasis() {
	if b.cfg.HomeostasisRate == 0 || b.cfg.HomeostasisEvery <= 0 {
		return
	}
	if b.ageSteps%int64(b.cfg.HomeostasisEvery) != 0 {
		return
	}
	var l1 float32
	rate := b.cfg.HomeostasisRate
	target := b.cfg.HomeostasisTargetAmp
	for i := 0; i < b.units.N(); i++ {
		if b.units.Reserved[i] {
			continue
		}
		delta := rate * (target - absf(b.units.Amp[i]))
		b.units.Bias[i] = clampF32(b.units.Bias[i]+delta, -0.5, 0.5)
		l1 += absf(delta)
	}
	b.monitors.HomeostasisBiasL1 = l1
}

// updateGrowthSignals refreshes the EMAs the hybrid growth policy reads.
func (b *Brain) updateGrowthSignals() {
	a := b.cfg.GrowthSignalAlpha
	b.growthEMACommit = (1-a)*b.growthEMACommit + a*boolToF32(b.monitors.Committed)
	norm := float32(0)
	if b.csr.E() > 0 {
		norm = b.monitors.EligibilityL1 / float32(b.csr.E())
	}
	b.growthEMAElig = (1-a)*b.growthEMAElig + a*norm
}

func boolToF32(v bool) float32 {
	if v {
		return 1
	}
	return 0
}

// meanAbsNonzeroWeight computes the mean magnitude of non-tombstoned edges.
func (b *Brain) meanAbsNonzeroWeight() float32 {
	var sum float32
	var n int
	for i, t := range b.csr.targets {
		if t == Invalid {
			continue
		}
		sum += absf(b.csr.weights[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

// growthGateOpen implements §4.8's legacy/hybrid growth gate.
func (b *Brain) growthGateOpen(threshold float32) bool {
	if b.meanAbsNonzeroWeight() <= threshold {
		return false
	}
	if b.cfg.GrowthPolicyMode != GrowthPolicyHybrid {
		return true
	}
	if b.ageSteps-b.lastGrowthStep < b.cfg.GrowthCooldownSteps {
		return false
	}
	if b.growthEMACommit < b.cfg.GrowthCommitThreshold {
		return false
	}
	if b.growthEMAElig < b.cfg.GrowthEligibilityThreshold {
		return false
	}
	if b.growthEMAPruneRate > b.cfg.GrowthPruneRateMax {
		return false
	}
	return true
}

// growOneUnit appends a single unit with small random outgoing wiring and a
// handful of incoming edges from existing units, per §4.8.
func (b *Brain) growOneUnit() int {
	phase := b.rng.F32(-math.Pi, math.Pi)
	idx := b.units.Append(0, phase, 0.02, 0.05)
	b.csr.GrowUnits(1)

	connectivity := b.cfg.ConnectivityPerUnit
	existing := idx // units [0, existing) existed before this one
	for c := 0; c < connectivity && existing > 0; c++ {
		target := b.rng.Usize(0, existing)
		b.csr.AddOrBump(idx, target, b.rng.F32(-0.1, 0.1))
	}
	incoming := connectivity / 2
	if incoming < 1 {
		incoming = 1
	}
	for c := 0; c < incoming && existing > 0; c++ {
		src := b.rng.Usize(0, existing)
		b.csr.AddOrBump(src, idx, b.rng.F32(0.02, 0.1))
	}
	b.lastGrowthStep = b.ageSteps
	return idx
}

// MaybeNeurogenesis grows up to count units when the growth gate is open
// and the resulting unit count would not exceed maxUnits. Returns the
// number of units actually grown.
func (b *Brain) MaybeNeurogenesis(threshold float32, count, maxUnits int) int {
	if !b.growthGateOpen(threshold) {
		return 0
	}
	grown := 0
	for grown < count && b.units.N() < maxUnits {
		b.growOneUnit()
		grown++
	}
	return grown
}

// GrowForGroup creates n units assigned to a group's module and wires them
// bidirectionally to the group's existing members, per §4.8's targeted
// growth.
func (b *Brain) GrowForGroup(kind GroupKind, name string, n int) int {
	g := b.FindGroup(name)
	if g == nil {
		g = b.DeclareGroup(kind, name, 0)
	}
	gi := int32(b.groupIndex(name))
	existingMembers := append([]int32(nil), g.Members...)

	grown := 0
	for i := 0; i < n; i++ {
		idx := b.growOneUnit()
		b.units.GroupOf[idx] = gi
		for _, m := range existingMembers {
			b.csr.AddOrBump(idx, int(m), b.rng.F32(0.05, 0.2))
			b.csr.AddOrBump(int(m), idx, b.rng.F32(0.05, 0.2))
		}
		g.Members = append(g.Members, int32(idx))
		grown++
	}
	return grown
}

// RetireInactive tombstones the outgoing edges of, and disables learning
// for, every non-member unit whose amplitude and bias are both near zero.
// Returns the count of units retired.
func (b *Brain) RetireInactive(ampThreshold, biasThreshold float32) int {
	retired := 0
	for i := 0; i < b.units.N(); i++ {
		if b.units.GroupOf[i] != NoGroup {
			continue
		}
		if absf(b.units.Amp[i]) > ampThreshold || absf(b.units.Bias[i]) > biasThreshold {
			continue
		}
		start, end := b.csr.offsets[i], b.csr.offsets[i+1]
		for k := start; k < end; k++ {
			b.csr.targets[k] = Invalid
			b.csr.eligibility[k] = 0
		}
		b.units.LearningEnabled[i] = false
		retired++
	}
	return retired
}

// retireLatentModules unassigns and clears latent modules that have gone
// unrouted long enough and whose reward EMA has decayed to near zero.
func (b *Brain) retireLatentModules() {
	after := b.cfg.LatentModuleRetireAfterSteps
	thresh := b.cfg.LatentModuleRetireRewardThreshold
	if after <= 0 {
		return
	}
	for gi, g := range b.groups {
		if g.Kind != KindLatent {
			continue
		}
		mod := b.modules[g.ModuleIdx]
		if len(g.Members) == 0 {
			continue
		}
		if b.ageSteps-mod.LastRoutedStep <= after {
			continue
		}
		if absf(mod.RewardEMA) >= thresh {
			continue
		}
		for _, m := range g.Members {
			b.units.GroupOf[m] = NoGroup
		}
		b.groups[gi].Members = nil
		mod.Signature = make(map[uint32]float32)
		mod.RewardEMA = 0
	}
}

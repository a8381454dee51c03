package substrate

import "math"

func softplus(z float64) float64 { return math.Log1p(math.Exp(z)) }

func softplusThr(x, sigma float32) float32 {
	if sigma <= 0 {
		return maxf(x, 0)
	}
	return sigma * float32(softplus(float64(x/sigma)))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// unitModule returns the module index a unit is assigned to via its group,
// and whether it has one.
func (b *Brain) unitModule(i int) (int32, bool) {
	gi := b.units.GroupOf[i]
	if gi == NoGroup {
		return 0, false
	}
	return b.groups[gi].ModuleIdx, true
}

func (b *Brain) learningActivity(i int) float32 {
	return maxf(b.units.Trace[i], maxf(b.units.Amp[i], 0))
}

// unitEligibleToLearn applies the router-gating rule from §4.5: skip units
// whose learning is disabled (retired units) or that are below the activity
// threshold, and when routing is active, skip units whose module is not in
// the routed set (strict mode additionally requires a module assignment at
// all).
func (b *Brain) unitEligibleToLearn(i int) bool {
	if !b.units.LearningEnabled[i] {
		return false
	}
	if b.learningActivity(i) < b.cfg.ModuleLearningActivityThreshold {
		return false
	}
	if b.cfg.ModuleRoutingTopK <= 0 {
		return true
	}
	mod, has := b.unitModule(i)
	if !has {
		return !b.cfg.ModuleRoutingStrict
	}
	return b.routedModules[mod]
}

// updateEligibility runs every step (C9 phase 1): decays all eligibility,
// then accumulates co-activation/phase-lock correlation into each
// non-tombstoned edge of units that pass the activity/routing gate.
func (b *Brain) updateEligibility() {
	decay := 1 - b.cfg.EligibilityDecay
	thetaCo := b.cfg.CoactiveThreshold
	thetaLock := b.cfg.PhaseLockThreshold
	softness := b.cfg.PhaseGateSoftness
	gain := b.cfg.EligibilityGain

	n := b.units.N()
	for o := 0; o < n; o++ {
		b.csr.NeighborsIdx(o, func(slot, _ int, _ float32) {
			b.csr.eligibility[slot] *= decay
		})
	}

	for o := 0; o < n; o++ {
		if !b.unitEligibleToLearn(o) {
			continue
		}
		ao := b.units.Amp[o]
		po := b.units.Phase[o]
		b.csr.NeighborsIdx(o, func(slot, t int, _ float32) {
			at := b.units.Amp[t]
			co := float32(math.Sqrt(float64(softplusThr(ao-thetaCo, b.cfg.CoactiveSoftness) *
				softplusThr(at-thetaCo, b.cfg.CoactiveSoftness))))

			align := 1 - absf(wrapPhase(po-b.units.Phase[t]))/math.Pi
			var corr float32
			if softness <= 0 {
				if align > thetaLock {
					corr = align
				}
			} else {
				corr = float32(sigmoid(float64((align-thetaLock)/softness))) * align
			}

			b.csr.eligibility[slot] = clampF32(b.csr.eligibility[slot]+gain*co*corr, -2, 2)
		})
	}
}

// commitPlasticity runs every step (C9 phase 2) but only applies weight
// changes when |neuromod| exceeds the learning deadband, honoring the
// global and per-module L1 budgets and cross-module scaling.
func (b *Brain) commitPlasticity() {
	var mon LearningMonitor

	var eligL1 float32
	for _, e := range b.csr.eligibility {
		eligL1 += absf(e)
	}
	mon.EligibilityL1 = eligL1

	if absf(b.neuromod) <= b.cfg.LearningDeadband {
		b.monitors = mon
		return
	}

	lr := b.cfg.HebbRate * b.neuromod
	globalBudget := b.cfg.PlasticityBudget
	moduleBudget := b.cfg.ModulePlasticityBudget
	moduleSpent := make(map[int32]float32)

	var spentL1 float32
	var appliedEdges int

	n := b.units.N()
outer:
	for o := 0; o < n; o++ {
		oMod, oHas := b.unitModule(o)
		start, end := b.csr.offsets[o], b.csr.offsets[o+1]
		for k := start; k < end; k++ {
			if b.csr.targets[k] == Invalid {
				continue
			}
			e := b.csr.eligibility[k]
			if e == 0 {
				continue
			}
			dw := clampF32(lr*e, -0.25, 0.25)

			t := int(b.csr.targets[k])
			tMod, tHas := b.unitModule(t)
			if oHas && tHas && oMod != tMod {
				dw *= b.cfg.CrossModulePlasticityScale
			}

			mag := absf(dw)
			if globalBudget > 0 && spentL1+mag > globalBudget {
				break outer
			}
			if moduleBudget > 0 && oHas {
				if moduleSpent[oMod]+mag > moduleBudget {
					continue
				}
				moduleSpent[oMod] += mag
			}

			b.csr.weights[k] = clampF32(b.csr.weights[k]+dw, -1.5, 1.5)
			spentL1 += mag
			appliedEdges++
		}
	}

	mon.Committed = appliedEdges > 0
	mon.AppliedDeltaL1 = spentL1
	mon.AppliedEdgeCount = appliedEdges
	b.monitors = mon
}

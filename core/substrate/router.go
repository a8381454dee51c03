package substrate

import "math"

// route selects the modules eligible to commit plasticity this tick, per
// §4.9. It is called once per commit_observation, after the committed
// symbol set is finalized.
func (b *Brain) route(committed []uint32) {
	for k := range b.routedModules {
		delete(b.routedModules, k)
	}
	if b.cfg.ModuleRoutingTopK <= 0 {
		return
	}

	type scored struct {
		idx   int32
		score float32
	}
	candidates := make([]scored, 0, len(b.modules))
	for gi, g := range b.groups {
		if len(g.Members) == 0 {
			continue
		}
		mod := b.modules[g.ModuleIdx]
		score := b.cfg.ModuleRoutingBeta * mod.RewardEMA
		for _, s := range committed {
			if b.symbols.Name(s) == g.Name {
				score += 1
			}
			score += mod.Signature[s]
		}
		_ = gi
		candidates = append(candidates, scored{idx: g.ModuleIdx, score: score})
	}

	// insertion sort descending — module counts are small
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].score < candidates[j].score {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}

	uninformative := len(candidates) == 0 || !isFinite32(candidates[0].score) || candidates[0].score <= 0
	if !uninformative {
		k := b.cfg.ModuleRoutingTopK
		if k > len(candidates) {
			k = len(candidates)
		}
		for i := 0; i < k; i++ {
			b.routedModules[candidates[i].idx] = true
		}
	} else {
		b.maybeAutoCreateLatent(committed)
	}

	for modIdx := range b.routedModules {
		b.updateModuleSignature(modIdx, committed)
	}
}

func isFinite32(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

func (b *Brain) updateModuleSignature(modIdx int32, committed []uint32) {
	mod := b.modules[modIdx]
	decay := 1 - b.cfg.ModuleSignatureDecay
	for k, v := range mod.Signature {
		nv := v * decay
		if nv < 1e-6 {
			delete(mod.Signature, k)
			continue
		}
		mod.Signature[k] = nv
	}
	for _, s := range committed {
		mod.Signature[s] += 1
	}
	trimSignature(mod.Signature, b.cfg.ModuleSignatureCap)
	mod.RewardEMA = (1-b.cfg.ModuleSignatureDecay)*mod.RewardEMA + b.cfg.ModuleSignatureDecay*clampF32(b.neuromod, -1, 1)
	mod.LastRoutedStep = b.ageSteps
}

// maybeAutoCreateLatent creates a fresh latent module when routing was
// uninformative and all of §4.9's auto-create gates pass.
func (b *Brain) maybeAutoCreateLatent(committed []uint32) {
	if !b.cfg.LatentModuleAutoCreate {
		return
	}
	if absf(b.neuromod) < b.cfg.LatentModuleAutoRewardThreshold {
		return
	}
	if b.ageSteps-b.lastLatentBirthStep < b.cfg.LatentModuleAutoCooldownSteps {
		return
	}
	if b.activeLatentCount() >= b.cfg.LatentModuleAutoMaxActive {
		return
	}
	if !b.hasNovelSymbol(committed) {
		return
	}

	b.latentSuffix++
	name := latentName(b.latentSuffix)
	g := b.DeclareGroup(KindLatent, name, b.cfg.LatentModuleAutoWidth)
	b.lastLatentBirthStep = b.ageSteps
	b.routedModules[g.ModuleIdx] = true
}

func latentName(suffix int64) string {
	const digits = "0123456789"
	buf := make([]byte, 0, 24)
	buf = append(buf, "auto_latent_"...)
	if suffix == 0 {
		return string(append(buf, '0'))
	}
	var tmp [20]byte
	n := 0
	for suffix > 0 {
		tmp[n] = digits[suffix%10]
		suffix /= 10
		n++
	}
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, tmp[i])
	}
	return string(buf)
}

func (b *Brain) activeLatentCount() int {
	n := 0
	for _, g := range b.groups {
		if g.Kind == KindLatent && len(g.Members) > 0 {
			n++
		}
	}
	return n
}

func (b *Brain) hasNovelSymbol(committed []uint32) bool {
	for _, s := range committed {
		novel := true
		for _, mod := range b.modules {
			if _, ok := mod.Signature[s]; ok {
				novel = false
				break
			}
		}
		if novel {
			return true
		}
	}
	return false
}

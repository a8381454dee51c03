package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStimulusUnknownSensorIsNoop(t *testing.T) {
	b := newTestBrain(t)
	b.ensurePendingInput()
	before := append([]float32(nil), b.pendingInput...)
	b.ApplyStimulus("does-not-exist", 1.0)
	assert.Equal(t, before, b.pendingInput)
	assert.Empty(t, b.activeSymbols)
}

func TestReinforceActionUnknownIsNoop(t *testing.T) {
	b := newTestBrain(t)
	before := append([]float32(nil), b.units.Bias...)
	b.ReinforceAction("does-not-exist", 5)
	assert.Equal(t, before, b.units.Bias)
}

func TestReinforceActionAdjustsBiasClamped(t *testing.T) {
	b := newTestBrain(t)
	g := b.DeclareGroup(KindAction, "jump", 2)
	b.ReinforceAction("jump", 1000)
	for _, m := range g.Members {
		assert.InDelta(t, 0.5, b.units.Bias[m], 1e-6)
	}
}

func TestNoteActionUnknownIsNoop(t *testing.T) {
	b := newTestBrain(t)
	b.NoteAction("does-not-exist")
	assert.Empty(t, b.activeSymbols)
}

func TestImprintingCreatesConceptUnit(t *testing.T) {
	b := newTestBrain(t)
	g := b.DeclareGroup(KindSensor, "vision_food", 4)

	conceptsBefore := 0
	for _, r := range b.units.Reserved {
		if r {
			conceptsBefore++
		}
	}

	b.ApplyStimulus("vision_food", 1.0)

	var concept int = -1
	for i, r := range b.units.Reserved {
		if r && b.units.GroupOf[i] == NoGroup {
			concept = i
			break
		}
	}
	require.GreaterOrEqual(t, concept, 0, "imprinting must reserve a concept unit")

	for _, m := range g.Members {
		slot := b.csr.FindEdge(int(m), concept)
		require.GreaterOrEqual(t, slot, 0, "imprinting must wire sensor->concept")
		assert.GreaterOrEqual(t, b.csr.weights[slot], b.cfg.ImprintRate*0.7)

		back := b.csr.FindEdge(concept, int(m))
		require.GreaterOrEqual(t, back, 0, "imprinting must wire concept->sensor")
	}
}

func TestImprintThenWeakRecall(t *testing.T) {
	b := newTestBrain(t)
	b.cfg.GlobalInhibition = 0
	g := b.DeclareGroup(KindSensor, "vision_food", 4)

	for i := 0; i < 3; i++ {
		b.ApplyStimulus("vision_food", 1.0)
		b.SetNeuromodulator(0)
		b.Step()
		b.CommitObservation()
	}

	concept := -1
	for i, r := range b.units.Reserved {
		if r && b.units.GroupOf[i] == NoGroup {
			concept = i
			break
		}
	}
	require.GreaterOrEqual(t, concept, 0)

	before := b.units.Amp[concept]
	for i := 0; i < 5; i++ {
		b.ApplyStimulus("vision_food", 0.4)
		b.Step()
	}
	assert.Greater(t, b.units.Amp[concept], before,
		"a previously imprinted concept should measurably reactivate on weak recall")
	_ = g
}

func TestCommitObservationFoldsRewardSymbol(t *testing.T) {
	b := newTestBrain(t)
	b.DeclareGroup(KindSensor, "eye", 2)
	b.ApplyStimulus("eye", 0.5)
	b.SetNeuromodulator(0.5)
	b.Step()
	b.CommitObservation()

	assert.NotZero(t, b.causal.base[b.rewardPosID])
}

func TestCommitObservationNegativeRewardSymbol(t *testing.T) {
	b := newTestBrain(t)
	b.DeclareGroup(KindSensor, "eye", 2)
	b.ApplyStimulus("eye", 0.5)
	b.SetNeuromodulator(-0.5)
	b.Step()
	b.CommitObservation()

	assert.NotZero(t, b.causal.base[b.rewardNegID])
	assert.Zero(t, b.causal.base[b.rewardPosID])
}

func TestDiscardObservationDoesNotTouchCausalMemory(t *testing.T) {
	b := newTestBrain(t)
	b.DeclareGroup(KindSensor, "eye", 2)
	b.ApplyStimulus("eye", 0.5)
	b.SetNeuromodulator(0.9)
	b.Step()

	before := len(b.causal.base)
	b.DiscardObservation()
	assert.Equal(t, before, len(b.causal.base))
	assert.Empty(t, b.activeSymbols)
}

func TestDreamDoesNotMutateCausalMemory(t *testing.T) {
	b := newTestBrain(t)
	b.DeclareGroup(KindSensor, "eye", 2)
	b.ApplyStimulus("eye", 0.5)
	b.SetNeuromodulator(0.9)
	b.Step()
	b.CommitObservation()

	baseSnapshot := len(b.causal.base)
	origNoise, origHebb := b.cfg.NoiseAmp, b.cfg.HebbRate

	b.Dream(10, 2.0, 3.0)

	assert.Equal(t, baseSnapshot, len(b.causal.base))
	assert.InDelta(t, origNoise, b.cfg.NoiseAmp, 1e-6, "Dream must restore NoiseAmp")
	assert.InDelta(t, origHebb, b.cfg.HebbRate, 1e-6, "Dream must restore HebbRate")
}

func TestAttentionGateZeroesBottomFraction(t *testing.T) {
	b := newTestBrain(t)
	b.ensurePendingInput()
	for i := range b.pendingInput {
		b.pendingInput[i] = 1.0
	}
	for i := range b.units.Salience {
		b.units.Salience[i] = float32(i)
	}

	gated := b.AttentionGate(0.25)
	assert.Greater(t, gated, 0)

	nonZero := 0
	for _, v := range b.pendingInput {
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, b.units.N()-gated, nonZero)
}

func TestForceAssociateBypassesEligibility(t *testing.T) {
	b := newTestBrain(t)
	gA := b.DeclareGroup(KindSensor, "a", 2)
	gB := b.DeclareGroup(KindSensor, "b", 2)

	b.ForceAssociate(gA.Members, gB.Members, 0.3)

	for _, a := range gA.Members {
		for _, bb := range gB.Members {
			slot := b.csr.FindEdge(int(a), int(bb))
			require.GreaterOrEqual(t, slot, 0)
			assert.InDelta(t, 0.3, b.csr.weights[slot], 1e-6)
			assert.Zero(t, b.csr.eligibility[slot])
		}
	}
}

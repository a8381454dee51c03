package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlasticityDeadbandIdempotence(t *testing.T) {
	b := newTestBrain(t)
	b.cfg.PruneBelow = 0 // isolate forgetting from pruning for this check
	b.DeclareGroup(KindSensor, "eye", 3)

	forgetRate := b.cfg.ForgetRate

	b.SetNeuromodulator(b.cfg.LearningDeadband / 2) // inside the deadband
	b.ApplyStimulus("eye", 0.8)
	// snapshot after ApplyStimulus: its imprinting rewires edges before Step
	before := append([]float32(nil), b.csr.weights...)
	b.Step()

	assert.False(t, b.Monitors().Committed)
	for i, w := range b.csr.weights {
		if b.csr.targets[i] == Invalid {
			continue
		}
		assert.InDelta(t, before[i]*(1-forgetRate), w, 1e-5,
			"weights must move only by forgetting while |neuromod| is within the deadband")
	}
}

func TestPlasticityBudgetEnforcement(t *testing.T) {
	b := newTestBrain(t)
	b.cfg.PlasticityBudget = 0.001
	b.DeclareGroup(KindSensor, "eye", 6)

	b.ApplyStimulus("eye", 1.0)
	b.SetNeuromodulator(1.0)
	b.Step()

	assert.LessOrEqual(t, b.Monitors().AppliedDeltaL1, b.cfg.PlasticityBudget+1e-6)
}

func TestPlasticitySignFollowsNeuromod(t *testing.T) {
	b := newTestBrain(t)
	b.DeclareGroup(KindSensor, "eye", 4)
	b.ApplyStimulus("eye", 0.9)
	for i := range b.units.Phase {
		b.units.Phase[i] = 0 // phase-locked, so the hard phase gate passes
	}
	for i := 0; i < 5; i++ {
		b.updateEligibility()
	}
	require.NotZero(t, b.csr.eligibility[0])

	posWeights := append([]float32(nil), b.csr.weights...)
	b.neuromod = 1.0
	b.commitPlasticity()
	afterPos := append([]float32(nil), b.csr.weights...)

	for i := range posWeights {
		if b.csr.targets[i] == Invalid {
			continue
		}
		if b.csr.eligibility[i] == 0 {
			continue
		}
		assert.GreaterOrEqual(t, afterPos[i], posWeights[i])
	}
}

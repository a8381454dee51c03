package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainPairedAction runs the full two-phase observation contract for one
// trial: a stimulus and an action are observed together, and the resulting
// reward is observed one tick later so ObserveLagged's lag-1 folding ties
// the stimulus/action/pair symbols to the reward symbol.
func trainPairedAction(b *Brain, stimulus, action string, reward float32) {
	b.ApplyStimulus(stimulus, 0.6)
	b.NoteAction(action)
	b.NoteCompoundSymbol("pair", stimulus, action)
	b.SetNeuromodulator(0)
	b.Step()
	b.CommitObservation()

	b.SetNeuromodulator(reward)
	b.Step()
	b.CommitObservation()
}

func TestHabitFormationRanksTrainedActionFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 48
	cfg.ConnectivityPerUnit = 6
	cfg.Seed = 123
	cfg.CausalDecay = 0
	cfg.CausalLagSteps = 2
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	b.DeclareGroup(KindSensor, "vision_food", 4)
	b.DeclareGroup(KindSensor, "vision_threat", 4)
	b.DeclareGroup(KindAction, "approach", 3)
	b.DeclareGroup(KindAction, "avoid", 3)
	b.DeclareGroup(KindAction, "idle", 3)

	for i := 0; i < 60; i++ {
		trainPairedAction(b, "vision_food", "approach", 0.9)
		trainPairedAction(b, "vision_food", "avoid", -0.9)
		trainPairedAction(b, "vision_threat", "avoid", 0.9)
		trainPairedAction(b, "vision_threat", "approach", -0.9)
	}

	ranked := b.RankedActionsWithMeaning("vision_food", 8.0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "approach", ranked[0].Action)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	assert.Equal(t, "approach", b.MeaningHint("vision_food"))
}

func TestCausalStrengthSignDistinguishesPairedAction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 48
	cfg.ConnectivityPerUnit = 6
	cfg.Seed = 321
	cfg.CausalDecay = 0
	cfg.CausalLagSteps = 2
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	b.DeclareGroup(KindSensor, "vision_food", 4)
	b.DeclareGroup(KindAction, "approach", 3)
	b.DeclareGroup(KindAction, "avoid", 3)

	for i := 0; i < 60; i++ {
		trainPairedAction(b, "vision_food", "approach", 0.9)
		trainPairedAction(b, "vision_food", "avoid", -0.9)
	}

	condApproach := b.conditionalMeaning("vision_food", "approach")
	condAvoid := b.conditionalMeaning("vision_food", "avoid")

	assert.Greater(t, condApproach, float32(0.1))
	assert.Less(t, condAvoid, float32(0))
	assert.Greater(t, condApproach-condAvoid, float32(0.1))
}

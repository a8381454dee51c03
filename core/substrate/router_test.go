package substrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingGatesNonRoutedModules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 6
	cfg.ConnectivityPerUnit = 0
	cfg.Seed = 11
	cfg.ModuleRoutingTopK = 1
	cfg.CoactiveThreshold = 0
	cfg.PhaseLockThreshold = -1 // always satisfied for any phase alignment
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	gA := b.DeclareGroup(KindSensor, "a", 2)
	gB := b.DeclareGroup(KindSensor, "b", 2)

	oA, tA := int(gA.Members[0]), int(gA.Members[1])
	oB, tB := int(gB.Members[0]), int(gB.Members[1])
	b.csr.AddOrBump(oA, tA, 0.1)
	b.csr.AddOrBump(oB, tB, 0.1)

	for _, i := range []int{oA, tA, oB, tB} {
		b.units.Amp[i] = 1.0
		b.units.Phase[i] = 0
	}

	b.routedModules = map[int32]bool{gA.ModuleIdx: true}
	b.updateEligibility()

	assert.NotZero(t, b.csr.eligibility[b.csr.FindEdge(oA, tA)], "routed module's edges must accumulate eligibility")
	assert.Zero(t, b.csr.eligibility[b.csr.FindEdge(oB, tB)], "non-routed module's edges must not accumulate eligibility")
}

func TestCrossModulePlasticityScaling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 4
	cfg.ConnectivityPerUnit = 0
	cfg.Seed = 3
	cfg.CrossModulePlasticityScale = 0.5
	cfg.LearningDeadband = 0.01
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	gA := b.DeclareGroup(KindSensor, "a", 2)
	gB := b.DeclareGroup(KindSensor, "b", 1)

	owner := int(gA.Members[0])
	intraTarget := int(gA.Members[1])
	crossTarget := int(gB.Members[0])

	b.csr.AddOrBump(owner, intraTarget, 0)
	b.csr.AddOrBump(owner, crossTarget, 0)
	eligSlotIntra := b.csr.FindEdge(owner, intraTarget)
	eligSlotCross := b.csr.FindEdge(owner, crossTarget)
	b.csr.eligibility[eligSlotIntra] = 1.0
	b.csr.eligibility[eligSlotCross] = 1.0

	b.neuromod = 0.5
	b.commitPlasticity()

	dwIntra := b.csr.weights[eligSlotIntra]
	dwCross := b.csr.weights[eligSlotCross]
	require.NotZero(t, dwIntra)
	assert.InDelta(t, cfg.CrossModulePlasticityScale, dwCross/dwIntra, 1e-4)
}

func TestPlasticityBudgetHaltsCommit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 20
	cfg.ConnectivityPerUnit = 6
	cfg.Seed = 4
	cfg.PlasticityBudget = 0.05
	cfg.LearningDeadband = 0.01
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	for i := range b.csr.eligibility {
		b.csr.eligibility[i] = 1.0
	}
	b.neuromod = 1.0
	b.commitPlasticity()

	assert.LessOrEqual(t, b.monitors.AppliedDeltaL1, cfg.PlasticityBudget+1e-6)
}

func TestLatentAutoCreateOnUninformativeRouting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 32
	cfg.ConnectivityPerUnit = 4
	cfg.Seed = 42
	cfg.ModuleRoutingTopK = 1
	cfg.ModuleRoutingStrict = true
	cfg.LatentModuleAutoCreate = true
	cfg.LatentModuleAutoWidth = 4
	cfg.LatentModuleAutoCooldownSteps = 0
	cfg.LatentModuleAutoRewardThreshold = 0
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	b.SetNeuromodulator(0.8)
	b.Step()
	b.NoteCompoundSymbol("novel_evt")
	b.CommitObservation()

	latents := b.GroupsByKind(KindLatent)
	require.Len(t, latents, 1)
	assert.True(t, strings.HasPrefix(latents[0], "auto_latent_"))

	g := b.FindGroup(latents[0])
	require.NotNil(t, g)
	assert.Len(t, g.Members, cfg.LatentModuleAutoWidth)
	assert.Equal(t, map[int32]bool{g.ModuleIdx: true}, b.routedModules)
}

func TestLatentAutoCreateRespectsCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnitCount = 32
	cfg.ConnectivityPerUnit = 4
	cfg.Seed = 5
	cfg.ModuleRoutingTopK = 1
	cfg.ModuleRoutingStrict = true
	cfg.LatentModuleAutoCreate = true
	cfg.LatentModuleAutoWidth = 4
	cfg.LatentModuleAutoCooldownSteps = 1000
	cfg.LatentModuleAutoRewardThreshold = 0
	b, err := NewBrain(cfg)
	require.NoError(t, err)

	b.lastLatentBirthStep = 0
	b.ageSteps = 1 // within cooldown of a prior birth at step 0

	b.SetNeuromodulator(0.8)
	b.Step()
	b.NoteCompoundSymbol("novel_evt")
	b.CommitObservation()

	assert.Empty(t, b.GroupsByKind(KindLatent))
}

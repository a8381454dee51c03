package substrate

import (
	"os"

	"gopkg.in/yaml.v3"
)

// PhaseCouplingMode selects the phase-coupling kernel Φ used during
// dynamics integration.
type PhaseCouplingMode int

const (
	PhaseCouplingLinear PhaseCouplingMode = iota
	PhaseCouplingSin
	PhaseCouplingTanh
)

// InhibitionMode selects how global inhibition aggregates amplitudes.
type InhibitionMode int

const (
	InhibitionSignedMean InhibitionMode = iota
	InhibitionMeanAbs
	InhibitionRectifiedMean
)

// GrowthPolicyMode selects the neurogenesis gating policy.
type GrowthPolicyMode int

const (
	GrowthPolicyLegacy GrowthPolicyMode = iota
	GrowthPolicyHybrid
)

// ExecutionTier selects the dynamics-step backend. All tiers must produce
// results that differ only by floating-point reduction order.
type ExecutionTier int

const (
	TierScalar ExecutionTier = iota
	TierVectorized
	TierThreaded
	TierAccelerator
)

// Config is the full, validated configuration surface of a Brain, per
// spec §6/§7. Fields are yaml-tagged so a Config can round-trip through a
// file on disk the way qubicdb's layered config does.
type Config struct {
	UnitCount          int `yaml:"unit_count"`
	ConnectivityPerUnit int `yaml:"connectivity_per_unit"`

	Dt       float32 `yaml:"dt"`
	BaseFreq float32 `yaml:"base_freq"`

	NoiseAmp   float32 `yaml:"noise_amp"`
	NoisePhase float32 `yaml:"noise_phase"`

	AmpSaturationBeta float32 `yaml:"amp_saturation_beta"`

	PhaseCouplingMode PhaseCouplingMode `yaml:"phase_coupling_mode"`
	PhaseCouplingK    float32           `yaml:"phase_coupling_k"`
	PhaseCouplingGain float32           `yaml:"phase_coupling_gain"`

	GlobalInhibition float32        `yaml:"global_inhibition"`
	InhibitionMode   InhibitionMode `yaml:"inhibition_mode"`

	HebbRate   float32 `yaml:"hebb_rate"`
	ForgetRate float32 `yaml:"forget_rate"`
	PruneBelow float32 `yaml:"prune_below"`

	CoactiveThreshold   float32 `yaml:"coactive_threshold"`
	PhaseLockThreshold  float32 `yaml:"phase_lock_threshold"`

	ImprintRate float32 `yaml:"imprint_rate"`

	SalienceDecay float32 `yaml:"salience_decay"`
	SalienceGain  float32 `yaml:"salience_gain"`

	ActivityTraceDecay float32 `yaml:"activity_trace_decay"`

	LearningDeadband float32 `yaml:"learning_deadband"`
	EligibilityDecay float32 `yaml:"eligibility_decay"`
	EligibilityGain  float32 `yaml:"eligibility_gain"`

	CoactiveSoftness  float32 `yaml:"coactive_softness"`
	PhaseGateSoftness float32 `yaml:"phase_gate_softness"`

	PlasticityBudget       float32 `yaml:"plasticity_budget"`
	ModulePlasticityBudget float32 `yaml:"module_plasticity_budget"`

	HomeostasisTargetAmp float32 `yaml:"homeostasis_target_amp"`
	HomeostasisRate      float32 `yaml:"homeostasis_rate"`
	HomeostasisEvery     int     `yaml:"homeostasis_every"`

	GrowthPolicyMode         GrowthPolicyMode `yaml:"growth_policy_mode"`
	GrowthCooldownSteps      int64            `yaml:"growth_cooldown_steps"`
	GrowthSignalAlpha        float32          `yaml:"growth_signal_alpha"`
	GrowthCommitThreshold    float32          `yaml:"growth_commit_threshold"`
	GrowthEligibilityThreshold float32        `yaml:"growth_eligibility_threshold"`
	GrowthPruneRateMax       float32          `yaml:"growth_prune_rate_max"`
	GrowthMeanWeightThreshold float32         `yaml:"growth_mean_weight_threshold"`

	CausalLagSteps  int     `yaml:"causal_lag_steps"`
	CausalLagDecay  float32 `yaml:"causal_lag_decay"`
	CausalSymbolCap int     `yaml:"causal_symbol_cap"`
	CausalDecay     float32 `yaml:"causal_decay"`

	ModuleRoutingTopK                  int     `yaml:"module_routing_top_k"`
	ModuleRoutingStrict                bool    `yaml:"module_routing_strict"`
	ModuleRoutingBeta                  float32 `yaml:"module_routing_beta"`
	ModuleSignatureDecay               float32 `yaml:"module_signature_decay"`
	ModuleSignatureCap                 int     `yaml:"module_signature_cap"`
	ModuleLearningActivityThreshold    float32 `yaml:"module_learning_activity_threshold"`

	CrossModulePlasticityScale float32 `yaml:"cross_module_plasticity_scale"`
	CrossModuleForgetBoost     float32 `yaml:"cross_module_forget_boost"`
	CrossModulePruneBonus      float32 `yaml:"cross_module_prune_bonus"`

	LatentModuleAutoCreate             bool    `yaml:"latent_module_auto_create"`
	LatentModuleAutoWidth              int     `yaml:"latent_module_auto_width"`
	LatentModuleAutoCooldownSteps      int64   `yaml:"latent_module_auto_cooldown_steps"`
	LatentModuleAutoMaxActive          int     `yaml:"latent_module_auto_max_active"`
	LatentModuleAutoRewardThreshold    float32 `yaml:"latent_module_auto_reward_threshold"`
	LatentModuleRetireAfterSteps       int64   `yaml:"latent_module_retire_after_steps"`
	LatentModuleRetireRewardThreshold  float32 `yaml:"latent_module_retire_reward_threshold"`

	ExecutionTier ExecutionTier `yaml:"execution_tier"`

	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns a Config with the conservative defaults used by the
// end-to-end scenarios in spec §8.
func DefaultConfig() Config {
	return Config{
		UnitCount:           64,
		ConnectivityPerUnit: 8,

		Dt:       0.05,
		BaseFreq: 1.0,

		NoiseAmp:   0.02,
		NoisePhase: 0.02,

		AmpSaturationBeta: 0.0,

		PhaseCouplingMode: PhaseCouplingSin,
		PhaseCouplingK:    1.0,
		PhaseCouplingGain: 0.3,

		GlobalInhibition: 0.1,
		InhibitionMode:   InhibitionMeanAbs,

		HebbRate:   0.05,
		ForgetRate: 0.001,
		PruneBelow: 0.02,

		CoactiveThreshold:  0.2,
		PhaseLockThreshold: 0.6,

		ImprintRate: 0.5,

		SalienceDecay: 0.02,
		SalienceGain:  1.0,

		ActivityTraceDecay: 0.1,

		LearningDeadband: 0.05,
		EligibilityDecay: 0.1,
		EligibilityGain:  1.0,

		CoactiveSoftness:  0.1,
		PhaseGateSoftness: 0.0,

		PlasticityBudget:       0,
		ModulePlasticityBudget: 0,

		HomeostasisTargetAmp: 0.5,
		HomeostasisRate:      0.01,
		HomeostasisEvery:     50,

		GrowthPolicyMode:           GrowthPolicyLegacy,
		GrowthCooldownSteps:        500,
		GrowthSignalAlpha:          0.05,
		GrowthCommitThreshold:      0.3,
		GrowthEligibilityThreshold: 0.2,
		GrowthPruneRateMax:         0.1,
		GrowthMeanWeightThreshold:  0.6,

		CausalLagSteps:  4,
		CausalLagDecay:  0.5,
		CausalSymbolCap: 32,
		CausalDecay:     0.01,

		ModuleRoutingTopK:               0,
		ModuleRoutingStrict:             false,
		ModuleRoutingBeta:               0.5,
		ModuleSignatureDecay:            0.02,
		ModuleSignatureCap:              32,
		ModuleLearningActivityThreshold: 0.0,

		CrossModulePlasticityScale: 0.5,
		CrossModuleForgetBoost:     0.01,
		CrossModulePruneBonus:      0.01,

		LatentModuleAutoCreate:            false,
		LatentModuleAutoWidth:             4,
		LatentModuleAutoCooldownSteps:     500,
		LatentModuleAutoMaxActive:         4,
		LatentModuleAutoRewardThreshold:   0.3,
		LatentModuleRetireAfterSteps:      2000,
		LatentModuleRetireRewardThreshold: 0.05,

		ExecutionTier: TierScalar,

		Seed: 42,
	}
}

// Validate checks all invariants a Config must satisfy before a Brain can
// be constructed or updated.
func (c *Config) Validate() error {
	switch {
	case c.UnitCount <= 0:
		return newConfigError("unit_count must be positive")
	case c.ConnectivityPerUnit < 0:
		return newConfigError("connectivity_per_unit must be non-negative")
	case c.ConnectivityPerUnit >= c.UnitCount:
		return newConfigError("connectivity_per_unit must be less than unit_count")
	case c.Dt <= 0:
		return newConfigError("dt must be positive")
	case c.PhaseCouplingMode < PhaseCouplingLinear || c.PhaseCouplingMode > PhaseCouplingTanh:
		return newConfigError("phase_coupling_mode must be 0, 1, or 2")
	case c.InhibitionMode < InhibitionSignedMean || c.InhibitionMode > InhibitionRectifiedMean:
		return newConfigError("inhibition_mode must be 0, 1, or 2")
	case c.GrowthPolicyMode < GrowthPolicyLegacy || c.GrowthPolicyMode > GrowthPolicyHybrid:
		return newConfigError("growth_policy_mode must be 0 or 1")
	case c.CausalLagSteps < 1 || c.CausalLagSteps > 32:
		return newConfigError("causal_lag_steps must be in [1, 32]")
	case c.CausalLagDecay <= 0 || c.CausalLagDecay >= 1:
		return newConfigError("causal_lag_decay must be in (0, 1)")
	case c.CausalSymbolCap <= 0:
		return newConfigError("causal_symbol_cap must be positive")
	case c.CausalDecay < 0 || c.CausalDecay > 1:
		return newConfigError("causal_decay must be in [0, 1]")
	case c.ModuleRoutingTopK < 0:
		return newConfigError("module_routing_top_k must be non-negative")
	case c.ModuleSignatureCap < 0:
		return newConfigError("module_signature_cap must be non-negative")
	case c.PlasticityBudget < 0:
		return newConfigError("plasticity_budget must be non-negative")
	case c.ModulePlasticityBudget < 0:
		return newConfigError("module_plasticity_budget must be non-negative")
	case c.CrossModulePlasticityScale < 0:
		return newConfigError("cross_module_plasticity_scale must be non-negative")
	case c.ForgetRate < 0 || c.ForgetRate > 1:
		return newConfigError("forget_rate must be in [0, 1]")
	case c.ExecutionTier < TierScalar || c.ExecutionTier > TierAccelerator:
		return newConfigError("execution_tier out of range")
	}
	return nil
}

// LoadConfigFile reads and validates a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, newConfigError("yaml: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfigFile writes cfg to path as YAML.
func SaveConfigFile(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// UpdateConfig applies an arbitrary mutation to the brain's config. It
// rejects any change to UnitCount or ConnectivityPerUnit (immutable after
// construction), re-validates, and re-seeds the PRNG if Seed changed.
func (b *Brain) UpdateConfig(f func(*Config)) error {
	before := b.cfg
	next := b.cfg
	f(&next)
	if next.UnitCount != before.UnitCount {
		return newConfigError("unit_count is immutable after construction")
	}
	if next.ConnectivityPerUnit != before.ConnectivityPerUnit {
		return newConfigError("connectivity_per_unit is immutable after construction")
	}
	if err := next.Validate(); err != nil {
		return err
	}
	b.cfg = next
	if next.Seed != before.Seed {
		b.rng.SetState(next.Seed)
	}
	return nil
}

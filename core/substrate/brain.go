package substrate

import "github.com/google/uuid"

// Brain is the top-level substrate engine: one stateful instance advanced
// by Step and the surrounding observation pipeline. It is single-threaded
// by contract — no public method is safe to call concurrently on the same
// instance.
type Brain struct {
	InstanceID uuid.UUID // ephemeral, not persisted; for log correlation only

	cfg Config
	rng *RNG

	ageSteps int64

	units *Units
	csr   *CSR

	groups  []*Group
	modules []*Module

	symbols *SymbolTable
	causal  *CausalMemory

	rewardPosID uint32
	rewardNegID uint32

	// ephemeral per-tick state, never persisted
	pendingInput  []float32
	activeSymbols []uint32
	lagHistory    [][]uint32

	neuromod float32

	routedModules map[int32]bool // module index -> eligible this tick

	lastLatentBirthStep int64
	latentSuffix        int64

	lastGrowthStep int64
	growthEMACommit    float32
	growthEMAElig      float32
	growthEMAPruneRate float32

	// per-step monitors (§4.5, §8)
	monitors LearningMonitor
}

// LearningMonitor captures the per-step telemetry the spec requires:
// whether plasticity committed, magnitude and count of applied changes,
// eligibility L1, and homeostasis bias L1.
type LearningMonitor struct {
	Committed           bool
	AppliedDeltaL1       float32
	AppliedEdgeCount     int
	EligibilityL1        float32
	HomeostasisBiasL1    float32
}

// NewBrain constructs a validated, empty brain with cfg.UnitCount units and
// no groups. Self-edges are forbidden at construction (there are none yet).
func NewBrain(cfg Config) (*Brain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := NewRNG(cfg.Seed)
	b := &Brain{
		InstanceID:    uuid.New(),
		cfg:           cfg,
		rng:           rng,
		units:         newUnits(cfg.UnitCount, rng),
		csr:           NewCSR(cfg.UnitCount),
		symbols:       newSymbolTable(),
		causal:        newCausalMemory(),
		routedModules: make(map[int32]bool),
	}
	b.wireInitialConnectivity()
	b.rewardPosID = b.symbols.Intern(reservedRewardPosName)
	b.rewardNegID = b.symbols.Intern(reservedRewardNegName)
	return b, nil
}

// wireInitialConnectivity gives every unit ConnectivityPerUnit random
// outgoing edges to distinct, non-self targets with small random weights.
func (b *Brain) wireInitialConnectivity() {
	n := b.cfg.UnitCount
	k := b.cfg.ConnectivityPerUnit
	if k <= 0 {
		return
	}
	targets := make([]int32, 0, n*k)
	weights := make([]float32, 0, n*k)
	elig := make([]float32, 0, n*k)
	offsets := make([]int32, n+1)

	for i := 0; i < n; i++ {
		offsets[i] = int32(len(targets))
		chosen := make(map[int]bool, k)
		for len(chosen) < k {
			t := b.rng.Usize(0, n)
			if t == i || chosen[t] {
				continue
			}
			chosen[t] = true
			targets = append(targets, int32(t))
			weights = append(weights, b.rng.F32(-0.2, 0.2))
			elig = append(elig, 0)
		}
	}
	offsets[n] = int32(len(targets))

	b.csr.offsets = offsets
	b.csr.targets = targets
	b.csr.weights = weights
	b.csr.eligibility = elig
}

// Config returns a copy of the brain's current configuration.
func (b *Brain) Config() Config { return b.cfg }

// AgeSteps returns the number of completed Step calls.
func (b *Brain) AgeSteps() int64 { return b.ageSteps }

// Fingerprint returns the CSR structural fingerprint (§4.3).
func (b *Brain) Fingerprint() uint64 { return b.csr.Fingerprint() }

// Monitors returns a copy of the most recent per-step learning telemetry.
func (b *Brain) Monitors() LearningMonitor { return b.monitors }

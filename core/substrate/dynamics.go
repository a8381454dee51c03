package substrate

import (
	"math"

	"golang.org/x/sync/errgroup"
)

// phaseCoupling applies the configured Φ kernel to a wrapped phase delta.
func phaseCoupling(mode PhaseCouplingMode, k float32, delta float32) float32 {
	switch mode {
	case PhaseCouplingSin:
		return float32(math.Sin(float64(delta)))
	case PhaseCouplingTanh:
		return float32(math.Tanh(float64(k) * float64(delta)))
	default: // PhaseCouplingLinear
		return delta
	}
}

// globalInhibitionValue aggregates all amplitudes per the configured mode.
func (b *Brain) globalInhibitionValue() float32 {
	n := b.units.N()
	if n == 0 {
		return 0
	}
	var sum float32
	switch b.cfg.InhibitionMode {
	case InhibitionMeanAbs:
		for _, a := range b.units.Amp {
			sum += absf(a)
		}
	case InhibitionRectifiedMean:
		for _, a := range b.units.Amp {
			sum += maxf(a, 0)
		}
	default: // InhibitionSignedMean
		for _, a := range b.units.Amp {
			sum += a
		}
	}
	return sum / float32(n)
}

// unitDelta is the forward-Euler increment computed for one unit from a
// read-only snapshot of the prior-tick state; applying it is left to the
// caller so every tier commits identically.
type unitDelta struct {
	dA float32
	dPhi float32
}

func (b *Brain) computeUnitDelta(i int, inhibition float32, priorAmp, priorPhase []float32) unitDelta {
	u := b.units
	mode := b.cfg.PhaseCouplingMode
	gain := b.cfg.PhaseCouplingGain
	k := b.cfg.PhaseCouplingK

	var inflAmp, inflPhase float32
	b.csr.Neighbors(i, func(t int, w float32) {
		inflAmp += w * priorAmp[t]
		delta := wrapPhase(priorPhase[t] - priorPhase[i])
		inflPhase += w * gain * phaseCoupling(mode, k, delta)
	})

	noiseA := b.rng.F32(-b.cfg.NoiseAmp, b.cfg.NoiseAmp)
	noiseP := b.rng.F32(-b.cfg.NoisePhase, b.cfg.NoisePhase)

	a := priorAmp[i]
	beta := b.cfg.AmpSaturationBeta
	dA := (u.Bias[i] + b.pendingInput[i] + inflAmp - inhibition - u.Decay[i]*a - beta*a*a*a + noiseA) * b.cfg.Dt
	dPhi := (b.cfg.BaseFreq + inflPhase + noiseP) * b.cfg.Dt

	return unitDelta{dA: dA, dPhi: dPhi}
}

// runDynamicsScalar is the reference, single-threaded implementation of one
// dynamics step (C8).
func (b *Brain) runDynamicsScalar() {
	n := b.units.N()
	priorAmp := append([]float32(nil), b.units.Amp...)
	priorPhase := append([]float32(nil), b.units.Phase...)
	inhibition := b.cfg.GlobalInhibition * b.globalInhibitionValue()

	for i := 0; i < n; i++ {
		d := b.computeUnitDelta(i, inhibition, priorAmp, priorPhase)
		b.units.Amp[i] = clampF32(priorAmp[i]+d.dA, -2, 2)
		b.units.Phase[i] = wrapPhase(priorPhase[i] + d.dPhi)
	}
	b.postUpdateTraceAndSalience()
}

// runDynamicsThreaded fans the per-unit update out across goroutines. Noise
// is drawn from the shared RNG up front, in the same per-unit order the
// scalar tier uses, so the RNG stream and the results match the scalar tier.
func (b *Brain) runDynamicsThreaded() {
	n := b.units.N()
	priorAmp := append([]float32(nil), b.units.Amp...)
	priorPhase := append([]float32(nil), b.units.Phase...)
	inhibition := b.cfg.GlobalInhibition * b.globalInhibitionValue()

	deltas := make([]unitDelta, n)
	// Pre-draw noise deterministically on the primary thread so worker
	// goroutines never touch the shared RNG concurrently.
	noiseA := make([]float32, n)
	noiseP := make([]float32, n)
	for i := 0; i < n; i++ {
		noiseA[i] = b.rng.F32(-b.cfg.NoiseAmp, b.cfg.NoiseAmp)
		noiseP[i] = b.rng.F32(-b.cfg.NoisePhase, b.cfg.NoisePhase)
	}

	var g errgroup.Group
	workers := 4
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			mode := b.cfg.PhaseCouplingMode
			gain := b.cfg.PhaseCouplingGain
			k := b.cfg.PhaseCouplingK
			beta := b.cfg.AmpSaturationBeta
			for i := lo; i < hi; i++ {
				var inflAmp, inflPhase float32
				b.csr.Neighbors(i, func(t int, wgt float32) {
					inflAmp += wgt * priorAmp[t]
					delta := wrapPhase(priorPhase[t] - priorPhase[i])
					inflPhase += wgt * gain * phaseCoupling(mode, k, delta)
				})
				a := priorAmp[i]
				dA := (b.units.Bias[i] + b.pendingInput[i] + inflAmp - inhibition - b.units.Decay[i]*a - beta*a*a*a + noiseA[i]) * b.cfg.Dt
				dPhi := (b.cfg.BaseFreq + inflPhase + noiseP[i]) * b.cfg.Dt
				deltas[i] = unitDelta{dA: dA, dPhi: dPhi}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := 0; i < n; i++ {
		b.units.Amp[i] = clampF32(priorAmp[i]+deltas[i].dA, -2, 2)
		b.units.Phase[i] = wrapPhase(priorPhase[i] + deltas[i].dPhi)
	}
	b.postUpdateTraceAndSalience()
}

// postUpdateTraceAndSalience updates the activity trace and salience EMAs
// after every unit's amplitude/phase has been committed for the tick.
func (b *Brain) postUpdateTraceAndSalience() {
	td := b.cfg.ActivityTraceDecay
	sd := b.cfg.SalienceDecay
	sg := b.cfg.SalienceGain
	thr := b.cfg.CoactiveThreshold
	for i := 0; i < b.units.N(); i++ {
		rect := maxf(b.units.Amp[i], 0)
		if td <= 0 {
			b.units.Trace[i] = rect
		} else {
			b.units.Trace[i] = (1-td)*b.units.Trace[i] + td*rect
		}
		b.units.Salience[i] = clampF32(
			(1-sd)*b.units.Salience[i]+sg*maxf(b.units.Trace[i]-thr, 0),
			0, 10)
	}
}

// runDynamics dispatches to the configured execution tier. The accelerator
// tier has no backing implementation in this module; it falls back to the
// scalar tier, per §4.4/§9's requirement that the engine tolerate the
// accelerator unavailable mid-session.
func (b *Brain) runDynamics() {
	switch b.cfg.ExecutionTier {
	case TierThreaded:
		b.runDynamicsThreaded()
	case TierVectorized, TierAccelerator:
		// No SIMD/accelerator backend is wired in this build; the scalar
		// path already produces the documented reduction-order-only
		// variance these tiers are allowed.
		b.runDynamicsScalar()
	default:
		b.runDynamicsScalar()
	}
}

// StepNonblockingStatus reports the state of a two-phase accelerator step.
type StepNonblockingStatus int

const (
	StepCompleted StepNonblockingStatus = iota
	StepInFlight
)

// StepNonblocking exists for embedders written against the two-phase
// accelerator contract (§5). No accelerator tier is implemented here, so a
// call always completes synchronously and returns StepCompleted.
func (b *Brain) StepNonblocking() StepNonblockingStatus {
	b.Step()
	return StepCompleted
}

package fault

// dropVerdict decides whether one chunk is discarded, mutating the burst
// counter. An active burst always continues; otherwise one roll decides
// whether a new burst starts (this chunk being its first casualty), and a
// second independent roll decides an isolated drop.
func (inj *Injector) dropVerdict() DropKind {
	loss := inj.policy.Loss
	if !loss.Enabled {
		return DropNone
	}

	if inj.burstRemaining > 0 {
		inj.burstRemaining--
		return DropBurstContinue
	}

	if loss.BurstSize > 0 && loss.BurstProbability > 0 {
		if inj.rng.Float64() < loss.BurstProbability {
			inj.burstRemaining = loss.BurstSize - 1
			return DropBurstStart
		}
	}

	if inj.rng.Float64() < loss.Probability {
		return DropIndependent
	}
	return DropNone
}

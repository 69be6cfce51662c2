package fault

import "time"

// latencyDelay computes the injected delay for one chunk. A disabled or
// all-zero policy returns 0 without consuming randomness. Otherwise the
// probability roll decides whether this chunk is affected at all, and the
// delay is the fixed component plus a uniform draw from the inclusive
// configured range.
func (inj *Injector) latencyDelay() time.Duration {
	lat := inj.policy.Latency
	if !lat.active() {
		return 0
	}

	if lat.Probability < 1.0 {
		if inj.rng.Float64() > lat.Probability {
			return 0
		}
	}

	delay := lat.Fixed
	if r := lat.Range; r != nil {
		span := int64(r.Max - r.Min)
		delay += r.Min + time.Duration(inj.rng.Int63n(span+1))
	}
	return delay
}

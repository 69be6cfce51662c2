package fault

import (
	"math"
	"time"
)

// throttleDelay spends size bytes of bandwidth credit and returns how long
// the caller must wait before forwarding the chunk. Token accounting is
// floating point so small chunks never starve on integer truncation.
//
// Refill adds elapsed*rate, capped at the burst capacity. When the bucket
// can't cover the chunk the wait is deficit/rate, the bucket is emptied, and
// the refill clock is advanced past the wait: the wait itself pays for the
// deficit, so the slept time must not be credited again on the next call.
func (inj *Injector) throttleDelay(size int, now time.Time) time.Duration {
	bw := inj.policy.Bandwidth
	if !bw.active() {
		return 0
	}

	rate := float64(bw.Rate)
	if elapsed := now.Sub(inj.lastRefill).Seconds(); elapsed > 0 {
		inj.tokens = math.Min(inj.tokens+elapsed*rate, float64(bw.Burst))
	}
	inj.lastRefill = now

	need := float64(size)
	if inj.tokens >= need {
		inj.tokens -= need
		return 0
	}

	deficit := need - inj.tokens
	wait := time.Duration(deficit / rate * float64(time.Second))
	inj.tokens = 0
	inj.lastRefill = now.Add(wait)
	return wait
}

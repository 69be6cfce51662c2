package fault

import (
	"fmt"
	"time"
)

// A Policy is the resolved fault configuration for a proxy. It is built once
// at startup, validated, and then shared read-only by every connection.
type Policy struct {
	Latency   LatencyPolicy   `json:"latency"`
	Loss      LossPolicy      `json:"loss"`
	Bandwidth BandwidthPolicy `json:"bandwidth"`
}

// LatencyPolicy delays chunks by a fixed duration plus an optional uniform
// random extra, applied with the given probability.
type LatencyPolicy struct {
	Enabled     bool          `json:"enabled"`
	Fixed       time.Duration `json:"fixed"`
	Range       *DelayRange   `json:"range,omitempty"`
	Probability float64       `json:"probability"`
}

// DelayRange is an inclusive [Min, Max] interval of extra delay.
type DelayRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// LossPolicy drops chunks, either independently with Probability, or in
// bursts of BurstSize consecutive chunks entered with BurstProbability.
type LossPolicy struct {
	Enabled          bool    `json:"enabled"`
	Probability      float64 `json:"probability"`
	BurstSize        int     `json:"burst_size"`
	BurstProbability float64 `json:"burst_probability"`
}

// BandwidthPolicy limits throughput to Rate bytes per second, allowing
// bursts of up to Burst bytes above the steady rate. Rate 0 means unlimited.
type BandwidthPolicy struct {
	Enabled bool  `json:"enabled"`
	Rate    int64 `json:"rate"`
	Burst   int64 `json:"burst"`
}

// active reports whether the mechanism can produce a nonzero delay at all.
func (p LatencyPolicy) active() bool {
	return p.Enabled && (p.Fixed > 0 || p.Range != nil)
}

// active reports whether the token bucket applies. Rate 0 with the feature
// enabled means no throttling.
func (p BandwidthPolicy) active() bool {
	return p.Enabled && p.Rate > 0
}

// Validate rejects malformed policies. It is called before the listener
// starts; a bad value refuses startup rather than being clamped.
func (p *Policy) Validate() error {
	if err := checkProbability("latency.probability", p.Latency.Probability); err != nil {
		return err
	}
	if p.Latency.Fixed < 0 {
		return fmt.Errorf("latency.fixed: negative duration %v", p.Latency.Fixed)
	}
	if r := p.Latency.Range; r != nil {
		if r.Min < 0 {
			return fmt.Errorf("latency.range: negative minimum %v", r.Min)
		}
		if r.Min > r.Max {
			return fmt.Errorf("latency.range: min %v exceeds max %v", r.Min, r.Max)
		}
	}

	if err := checkProbability("loss.probability", p.Loss.Probability); err != nil {
		return err
	}
	if err := checkProbability("loss.burst_probability", p.Loss.BurstProbability); err != nil {
		return err
	}
	if p.Loss.BurstSize < 0 {
		return fmt.Errorf("loss.burst_size: negative count %d", p.Loss.BurstSize)
	}
	if p.Loss.BurstProbability > 0 && p.Loss.BurstSize < 1 {
		return fmt.Errorf("loss.burst_size: must be at least 1 when loss.burst_probability is set")
	}

	if p.Bandwidth.Rate < 0 {
		return fmt.Errorf("bandwidth.rate: negative rate %d", p.Bandwidth.Rate)
	}
	if p.Bandwidth.Burst < 0 {
		return fmt.Errorf("bandwidth.burst: negative capacity %d", p.Bandwidth.Burst)
	}

	return nil
}

func checkProbability(field string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s: %v is outside [0, 1]", field, v)
	}
	return nil
}

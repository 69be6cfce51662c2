package fault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsZeroValuePolicy(t *testing.T) {
	require.NoError(t, (&Policy{}).Validate())
}

func TestValidateAcceptsFullPolicy(t *testing.T) {
	policy := &Policy{
		Latency: LatencyPolicy{
			Enabled:     true,
			Fixed:       100 * time.Millisecond,
			Range:       &DelayRange{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond},
			Probability: 0.8,
		},
		Loss: LossPolicy{
			Enabled:          true,
			Probability:      0.1,
			BurstSize:        5,
			BurstProbability: 0.01,
		},
		Bandwidth: BandwidthPolicy{
			Enabled: true,
			Rate:    50 * 1024,
			Burst:   8192,
		},
	}
	require.NoError(t, policy.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   string
	}{
		{
			"latency probability above one",
			Policy{Latency: LatencyPolicy{Probability: 1.5}},
			"latency.probability",
		},
		{
			"latency probability below zero",
			Policy{Latency: LatencyPolicy{Probability: -0.5}},
			"latency.probability",
		},
		{
			"negative fixed delay",
			Policy{Latency: LatencyPolicy{Fixed: -time.Second}},
			"latency.fixed",
		},
		{
			"inverted delay range",
			Policy{Latency: LatencyPolicy{
				Range: &DelayRange{Min: 200 * time.Millisecond, Max: 50 * time.Millisecond},
			}},
			"min 200ms exceeds max 50ms",
		},
		{
			"negative range minimum",
			Policy{Latency: LatencyPolicy{
				Range: &DelayRange{Min: -time.Millisecond, Max: time.Millisecond},
			}},
			"latency.range",
		},
		{
			"loss probability out of range",
			Policy{Loss: LossPolicy{Probability: 2}},
			"loss.probability",
		},
		{
			"burst probability out of range",
			Policy{Loss: LossPolicy{BurstProbability: -1}},
			"loss.burst_probability",
		},
		{
			"burst probability without burst size",
			Policy{Loss: LossPolicy{BurstProbability: 0.5}},
			"loss.burst_size",
		},
		{
			"negative burst size",
			Policy{Loss: LossPolicy{BurstSize: -3}},
			"loss.burst_size",
		},
		{
			"negative rate",
			Policy{Bandwidth: BandwidthPolicy{Rate: -1}},
			"bandwidth.rate",
		},
		{
			"negative burst capacity",
			Policy{Bandwidth: BandwidthPolicy{Burst: -1}},
			"bandwidth.burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLatencyActive(t *testing.T) {
	require.False(t, LatencyPolicy{Enabled: false, Fixed: time.Second}.active())
	require.False(t, LatencyPolicy{Enabled: true}.active())
	require.True(t, LatencyPolicy{Enabled: true, Fixed: time.Second}.active())
	require.True(t, LatencyPolicy{Enabled: true, Range: &DelayRange{}}.active())
}

func TestBandwidthActive(t *testing.T) {
	require.False(t, BandwidthPolicy{Enabled: false, Rate: 1000}.active())
	// Rate 0 with the feature enabled means unlimited, not divide-by-zero.
	require.False(t, BandwidthPolicy{Enabled: true, Rate: 0}.active())
	require.True(t, BandwidthPolicy{Enabled: true, Rate: 1000}.active())
}

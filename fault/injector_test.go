package fault

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// recordSleeps replaces the injector's sleep with one that only records.
func recordSleeps(inj *Injector) *[]time.Duration {
	var slept []time.Duration
	inj.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return &slept
}

func TestProcessAllDisabledForwardsUntouched(t *testing.T) {
	inj := newTestInjector(&Policy{})
	slept := recordSleeps(inj)

	for i := 0; i < 100; i++ {
		result, err := inj.Process(context.Background(), 1024)
		require.NoError(t, err)
		require.False(t, result.Dropped)
		require.Zero(t, result.Latency)
		require.Zero(t, result.Throttle)
	}
	require.Empty(t, *slept)
}

func TestProcessDropSkipsDelays(t *testing.T) {
	inj := newTestInjector(&Policy{
		Latency: LatencyPolicy{Enabled: true, Fixed: time.Second, Probability: 1},
		Loss:    LossPolicy{Enabled: true, Probability: 1},
		Bandwidth: BandwidthPolicy{
			Enabled: true,
			Rate:    1,
			Burst:   1,
		},
	})
	slept := recordSleeps(inj)
	tokens := inj.tokens

	result, err := inj.Process(context.Background(), 1024)
	require.NoError(t, err)
	require.True(t, result.Dropped)
	require.Equal(t, DropIndependent, result.DropKind)
	require.Empty(t, *slept)
	// A dropped chunk spends no bandwidth credit.
	require.Equal(t, tokens, inj.tokens)
}

func TestProcessOrderLatencyThenThrottle(t *testing.T) {
	inj := newTestInjector(&Policy{
		Latency:   LatencyPolicy{Enabled: true, Fixed: 500 * time.Millisecond, Probability: 1},
		Bandwidth: BandwidthPolicy{Enabled: true, Rate: 1000, Burst: 0},
	})
	slept := recordSleeps(inj)

	result, err := inj.Process(context.Background(), 1000)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, result.Latency)
	require.Greater(t, result.Throttle, time.Duration(0))
	require.Equal(t, []time.Duration{result.Latency, result.Throttle}, *slept)
}

func TestProcessAbandonsDelayOnCancel(t *testing.T) {
	inj := newTestInjector(&Policy{
		Latency: LatencyPolicy{Enabled: true, Fixed: time.Minute, Probability: 1},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := inj.Process(ctx, 1024)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestSeedMakesInjectorsReproducible(t *testing.T) {
	defer func() {
		seedMu.Lock()
		seedRng = nil
		seedMu.Unlock()
	}()

	policy := &Policy{
		Loss: LossPolicy{Enabled: true, Probability: 0.5},
	}

	run := func() []DropKind {
		Seed(7)
		inj := NewInjector(policy, zerolog.Nop())
		verdicts := make([]DropKind, 100)
		for i := range verdicts {
			verdicts[i] = inj.dropVerdict()
		}
		return verdicts
	}

	first := run()
	second := run()
	require.Equal(t, first, second)
}

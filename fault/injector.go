package fault

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// An Injector applies one direction's faults to the chunks flowing through a
// connection. It owns all mutable fault state (random source, burst counter,
// token bucket) and is driven by exactly one goroutine, so none of it is
// locked.
type Injector struct {
	policy *Policy
	logger zerolog.Logger

	rng            *rand.Rand
	burstRemaining int
	tokens         float64
	lastRefill     time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Result records the decisions made for one chunk, for metrics and logging.
type Result struct {
	ChunkSize int
	Dropped   bool
	DropKind  DropKind
	Latency   time.Duration
	Throttle  time.Duration
}

// DropKind distinguishes the three drop regimes for observability. The
// difference only matters for burst bookkeeping; on the wire every kind is
// simply a missing chunk.
type DropKind uint8

const (
	DropNone DropKind = iota
	DropIndependent
	DropBurstStart
	DropBurstContinue
)

func (k DropKind) String() string {
	switch k {
	case DropIndependent:
		return "independent"
	case DropBurstStart:
		return "burst_start"
	case DropBurstContinue:
		return "burst_continue"
	}
	return "none"
}

// NewInjector creates the fault state for one direction of one connection.
// The token bucket starts full.
func NewInjector(policy *Policy, logger zerolog.Logger) *Injector {
	return &Injector{
		policy:     policy,
		logger:     logger,
		rng:        rand.New(rand.NewSource(newSeed())),
		tokens:     float64(policy.Bandwidth.Burst),
		lastRefill: time.Now(),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Process applies the fault policy to one chunk, in order: drop decision,
// latency delay, bandwidth throttle. It returns what was decided so the
// caller can forward (or discard) the chunk and record the outcome. The only
// error it returns is the context's, when a delay is abandoned mid-sleep.
func (inj *Injector) Process(ctx context.Context, size int) (Result, error) {
	res := Result{ChunkSize: size}

	if kind := inj.dropVerdict(); kind != DropNone {
		res.Dropped = true
		res.DropKind = kind
		inj.logger.Debug().
			Int("size", size).
			Str("kind", kind.String()).
			Msg("Dropped chunk")
		return res, nil
	}

	if d := inj.latencyDelay(); d > 0 {
		res.Latency = d
		inj.logger.Debug().
			Int("size", size).
			Dur("delay", d).
			Msg("Injecting latency")
		if err := inj.sleep(ctx, d); err != nil {
			return res, err
		}
	}

	if d := inj.throttleDelay(size, inj.now()); d > 0 {
		res.Throttle = d
		inj.logger.Debug().
			Int("size", size).
			Dur("delay", d).
			Msg("Throttling bandwidth")
		if err := inj.sleep(ctx, d); err != nil {
			return res, err
		}
	}

	return res, nil
}

// sleepContext waits for d without blocking the rest of the scheduler, and
// gives up early if the connection is being torn down.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	seedMu  sync.Mutex
	seedRng *rand.Rand
)

// Seed makes injector seeds derive deterministically from the given value,
// for reproducible runs. Without it every injector is seeded from entropy.
// Only called during startup, before any connection is accepted.
func Seed(seed int64) {
	seedMu.Lock()
	defer seedMu.Unlock()
	seedRng = rand.New(rand.NewSource(seed))
}

func newSeed() int64 {
	seedMu.Lock()
	defer seedMu.Unlock()
	if seedRng != nil {
		return seedRng.Int63()
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

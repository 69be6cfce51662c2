package corrosion

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/devfire/corrosion/fault"
	"github.com/devfire/corrosion/stream"
)

// chunkSize is the read buffer size. One read is one chunk, the unit every
// fault decision applies to.
const chunkSize = 1024

// A link relays one accepted connection to its upstream.
//
// Client <-> corrosion <-> Upstream
//
// Each direction runs its own copy loop with its own fault injector, so an
// injected delay on one direction never stalls the other. The link owns both
// sockets; nothing about a connection outlives it.
type link struct {
	proxy *Proxy
	id    string

	client   net.Conn
	upstream net.Conn

	logger zerolog.Logger
	opened time.Time
}

// Status is the terminal state of one connection: which direction ended it
// and whether it ended in an I/O error or a clean end-of-stream.
type Status struct {
	Direction stream.Direction
	Err       error
}

func (s Status) Clean() bool {
	return s.Err == nil
}

type pipeResult struct {
	direction stream.Direction
	err       error
}

func newLink(proxy *Proxy, id string, client, upstream net.Conn) *link {
	return &link{
		proxy:    proxy,
		id:       id,
		client:   client,
		upstream: upstream,
		logger: proxy.logger.With().
			Str("connection", id).
			Str("client", client.RemoteAddr().String()).
			Logger(),
		opened: time.Now(),
	}
}

// Run relays until either side closes or fails, then closes both sockets and
// returns the terminal status. The first direction to finish decides the
// status; the opposite direction is unblocked by the socket closes and its
// teardown error is discarded.
func (l *link) Run() Status {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan pipeResult, 2)
	for _, p := range []struct {
		direction stream.Direction
		src, dst  net.Conn
	}{
		{stream.Upstream, l.client, l.upstream},
		{stream.Downstream, l.upstream, l.client},
	} {
		p := p
		injector := fault.NewInjector(l.proxy.policy, l.logger.With().
			Stringer("direction", p.direction).
			Logger())
		go func() {
			results <- pipeResult{p.direction, l.pipe(ctx, p.direction, p.src, p.dst, injector)}
		}()
	}

	first := <-results
	cancel()
	l.client.Close()
	l.upstream.Close()
	<-results

	status := Status{Direction: first.direction, Err: first.err}
	event := l.logger.Info()
	if !status.Clean() {
		event = l.logger.Warn().Err(status.Err)
	}
	event.
		Stringer("direction", status.Direction).
		Dur("duration", time.Since(l.opened)).
		Msg("Connection closed")
	return status
}

// pipe copies chunks from src to dst, applying the fault policy to each one.
// Chunks stay in read order; a dropped chunk is discarded whole. Returns nil
// on end-of-stream.
func (l *link) pipe(
	ctx context.Context,
	direction stream.Direction,
	src, dst net.Conn,
	injector *fault.Injector,
) error {
	metrics := l.proxy.metrics.ProxyMetrics
	buf := make([]byte, chunkSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if metrics != nil {
				metrics.ReceivedBytesTotal.
					WithLabelValues(l.proxy.labels(direction)...).
					Add(float64(n))
			}

			result, perr := injector.Process(ctx, n)
			if perr != nil {
				// Connection is being torn down; the in-flight delay
				// is abandoned along with the chunk.
				return nil
			}
			l.record(direction, result)

			if !result.Dropped {
				if werr := writeAll(dst, buf[:n]); werr != nil {
					return werr
				}
				if metrics != nil {
					metrics.SentBytesTotal.
						WithLabelValues(l.proxy.labels(direction)...).
						Add(float64(n))
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				// Socket closed by our own teardown, not a peer failure.
				return nil
			}
			return err
		}
	}
}

// record feeds one chunk's fault decisions into the proxy metrics. Purely
// advisory; it never blocks the data path.
func (l *link) record(direction stream.Direction, result fault.Result) {
	metrics := l.proxy.metrics.ProxyMetrics
	if metrics == nil {
		return
	}
	labels := l.proxy.labels(direction)
	if result.Dropped {
		metrics.ChunksDroppedTotal.
			WithLabelValues(append(labels, result.DropKind.String())...).
			Inc()
		return
	}
	metrics.ChunksForwardedTotal.WithLabelValues(labels...).Inc()
	if result.Latency > 0 {
		metrics.LatencyInjectedSeconds.
			WithLabelValues(labels...).
			Add(result.Latency.Seconds())
	}
	if result.Throttle > 0 {
		metrics.ThrottleDelaySeconds.
			WithLabelValues(labels...).
			Add(result.Throttle.Seconds())
	}
}

// writeAll retries short writes until the whole chunk is on the wire.
func writeAll(dst net.Conn, buf []byte) error {
	for len(buf) > 0 {
		n, err := dst.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

package corrosion

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v1"

	"github.com/devfire/corrosion/collectors"
	"github.com/devfire/corrosion/fault"
	"github.com/devfire/corrosion/stream"
)

// Proxy is the degrading relay: it accepts clients on Listen, dials Upstream
// once per client, and runs a link per connection that applies the fault
// policy to everything flowing through.
//
// Client <-> corrosion <-> Upstream
type Proxy struct {
	Name     string `json:"name"`
	Listen   string `json:"listen"`
	Upstream string `json:"upstream"`

	policy  *fault.Policy
	logger  zerolog.Logger
	metrics *collectors.MetricsContainer

	started chan error
	tomb    tomb.Tomb

	connections connectionList
}

// ConnectionInfo is a point-in-time view of one active connection, served by
// the status API.
type ConnectionInfo struct {
	ID     string    `json:"id"`
	Client string    `json:"client"`
	Opened time.Time `json:"opened"`
}

type connectionList struct {
	sync.Mutex
	list map[string]*link
}

func (c *connectionList) add(l *link) {
	c.Lock()
	defer c.Unlock()
	if c.list == nil {
		c.list = make(map[string]*link)
	}
	c.list[l.id] = l
}

func (c *connectionList) remove(id string) {
	c.Lock()
	defer c.Unlock()
	delete(c.list, id)
}

func (c *connectionList) closeAll() {
	c.Lock()
	defer c.Unlock()
	for _, l := range c.list {
		l.client.Close()
		l.upstream.Close()
	}
}

func (c *connectionList) snapshot() []ConnectionInfo {
	c.Lock()
	defer c.Unlock()
	infos := make([]ConnectionInfo, 0, len(c.list))
	for _, l := range c.list {
		infos = append(infos, ConnectionInfo{
			ID:     l.id,
			Client: l.client.RemoteAddr().String(),
			Opened: l.opened,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Opened.Before(infos[j].Opened) })
	return infos
}

// NewProxy creates a proxy for an already validated policy. The listener is
// not opened until Start.
func NewProxy(
	name, listen, upstream string,
	policy *fault.Policy,
	metrics *collectors.MetricsContainer,
	logger zerolog.Logger,
) *Proxy {
	if metrics == nil {
		metrics = collectors.NewMetricsContainer(nil)
	}
	return &Proxy{
		Name:     name,
		Listen:   listen,
		Upstream: upstream,
		policy:   policy,
		metrics:  metrics,
		logger:   logger.With().Str("proxy", name).Logger(),
		started:  make(chan error),
	}
}

// Policy returns the proxy's resolved fault policy. Immutable after
// construction, safe to read from any goroutine.
func (proxy *Proxy) Policy() *fault.Policy {
	return proxy.policy
}

// Connections lists the currently active connections.
func (proxy *Proxy) Connections() []ConnectionInfo {
	return proxy.connections.snapshot()
}

func (proxy *Proxy) Start() error {
	go proxy.server()
	return <-proxy.started
}

// server runs the accept loop, spawning an independent link per client.
func (proxy *Proxy) server() {
	ln, err := net.Listen("tcp", proxy.Listen)
	if err != nil {
		proxy.started <- err
		return
	}

	proxy.Listen = ln.Addr().String()
	proxy.started <- nil

	proxy.logger.Info().
		Str("listen", proxy.Listen).
		Str("upstream", proxy.Upstream).
		Msg("Started proxy")

	acceptTomb := tomb.Tomb{}
	defer acceptTomb.Done()

	// Closing the listener is the only way to unblock Accept below.
	go func() {
		<-proxy.tomb.Dying()

		acceptTomb.Killf("Shutting down from stop()")
		err := ln.Close()
		if err != nil {
			proxy.logger.Warn().
				Err(err).
				Msg("Attempted to close an already closed proxy server")
		}

		// Wait for the accept loop to finish processing
		acceptTomb.Wait()
		proxy.tomb.Done()
	}()

	for {
		client, err := ln.Accept()
		if err != nil {
			// Go doesn't export the "listener closed" error, so sync with
			// the tomb to tell shutdown apart from a real accept failure.
			select {
			case <-acceptTomb.Dying():
			default:
				proxy.logger.Warn().
					Err(err).
					Msg("Error while accepting client")
			}
			return
		}

		proxy.logger.Info().
			Str("client", client.RemoteAddr().String()).
			Str("upstream", proxy.Upstream).
			Msg("Accepted client")

		upstream, err := net.Dial("tcp", proxy.Upstream)
		if err != nil {
			// Fatal for this one connection only, and never retried: the
			// client is closed without any data exchanged.
			proxy.logger.Error().
				Err(err).
				Str("client", client.RemoteAddr().String()).
				Str("upstream", proxy.Upstream).
				Msg("Unable to open connection to upstream")
			client.Close()
			continue
		}

		go proxy.runLink(client, upstream)
	}
}

func (proxy *Proxy) runLink(client, upstream net.Conn) {
	l := newLink(proxy, uuid.NewString(), client, upstream)
	proxy.connections.add(l)
	if pm := proxy.metrics.ProxyMetrics; pm != nil {
		pm.ConnectionsAcceptedTotal.Inc()
		pm.ConnectionsActive.Inc()
	}

	defer func() {
		proxy.connections.remove(l.id)
		if pm := proxy.metrics.ProxyMetrics; pm != nil {
			pm.ConnectionsActive.Dec()
		}
	}()

	l.Run()
}

// Stop shuts down the accept loop, then severs every active connection.
func (proxy *Proxy) Stop() {
	proxy.tomb.Killf("Shutting down from stop()")
	proxy.tomb.Wait() // Wait until we stop accepting new connections

	proxy.connections.closeAll()

	proxy.logger.Info().
		Str("listen", proxy.Listen).
		Str("upstream", proxy.Upstream).
		Msg("Terminated proxy")
}

// labels builds the metric label values for one direction of this proxy.
func (proxy *Proxy) labels(direction stream.Direction) []string {
	return []string{
		direction.String(),
		proxy.Name,
		proxy.Listen,
		proxy.Upstream,
	}
}

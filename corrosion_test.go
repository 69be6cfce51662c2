package corrosion_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v1"

	"github.com/devfire/corrosion"
	"github.com/devfire/corrosion/collectors"
	"github.com/devfire/corrosion/fault"
	"github.com/devfire/corrosion/testhelper"
)

func NewTestProxy(t *testing.T, upstream string, policy *fault.Policy) *corrosion.Proxy {
	t.Helper()

	if policy == nil {
		policy = &fault.Policy{}
	}
	if err := policy.Validate(); err != nil {
		t.Fatal("Invalid test policy:", err)
	}

	metrics := collectors.NewMetricsContainer(prometheus.NewRegistry())
	metrics.ProxyMetrics = collectors.NewProxyMetricCollectors()

	return corrosion.NewProxy("test", "localhost:0", upstream, policy, metrics, zerolog.Nop())
}

func WithTCPProxy(
	t *testing.T,
	policy *fault.Policy,
	f func(proxy net.Conn, response chan []byte, proxyServer *corrosion.Proxy),
) {
	testhelper.WithTCPServer(t, func(upstream string, response chan []byte) {
		proxy := NewTestProxy(t, upstream, policy)
		if err := proxy.Start(); err != nil {
			t.Fatal("Failed to start proxy:", err)
		}

		conn := AssertProxyUp(t, proxy.Listen, true)

		f(conn, response, proxy)

		proxy.Stop()
	})
}

func WithEchoServer(t *testing.T, block func(string, chan []byte)) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("Failed to create TCP server", err)
	}

	defer ln.Close()

	response := make(chan []byte, 1)
	serverTomb := tomb.Tomb{}

	go func() {
		defer serverTomb.Done()
		src, err := ln.Accept()
		if err != nil {
			select {
			case <-serverTomb.Dying():
			default:
				t.Error("Failed to accept client")
			}
			return
		}

		scan := bufio.NewScanner(src)
		if scan.Scan() {
			received := append(scan.Bytes(), '\n')
			response <- received

			src.Write(received)
		}
		src.Close()
	}()

	block(ln.Addr().String(), response)

	serverTomb.Killf("Shutting down from stop()")
}

func WithEchoProxy(
	t *testing.T,
	policy *fault.Policy,
	f func(proxy net.Conn, response chan []byte, proxyServer *corrosion.Proxy),
) {
	WithEchoServer(t, func(upstream string, response chan []byte) {
		proxy := NewTestProxy(t, upstream, policy)
		if err := proxy.Start(); err != nil {
			t.Fatal("Failed to start proxy:", err)
		}

		conn, err := net.Dial("tcp", proxy.Listen)
		if err != nil {
			t.Error("Unable to dial TCP server", err)
		}

		f(conn, response, proxy)

		proxy.Stop()
	})
}

func AssertProxyUp(t *testing.T, addr string, up bool) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil && up {
		t.Error("Expected proxy to be up:", err)
	} else if err == nil && !up {
		t.Error("Expected proxy to be down")
	}
	return conn
}

func AssertDeltaTime(t *testing.T, message string, actual, expected, delta time.Duration) {
	t.Helper()

	diff := actual - expected
	if diff < 0 {
		diff *= -1
	}
	if diff > delta {
		t.Errorf("[%s] Time was more than %v off: got %v expected %v", message, delta, actual, expected)
	} else {
		t.Logf("[%s] Time was correct: %v (expected %v)", message, actual, expected)
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devfire/corrosion"
	"github.com/devfire/corrosion/app"
	"github.com/devfire/corrosion/fault"
)

func main() {
	cliApp := &cli.App{
		Name:    "corrosiond",
		Usage:   "TCP relay that degrades the connections it carries",
		Version: corrosion.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Value:   "default",
				Usage:   "proxy name used in logs and metrics",
				EnvVars: []string{"CORROSION_NAME"},
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Value:   "localhost:8080",
				Usage:   "address to accept client connections on",
				EnvVars: []string{"CORROSION_LISTEN"},
			},
			&cli.StringFlag{
				Name:     "upstream",
				Aliases:  []string{"u"},
				Usage:    "address to relay client connections to",
				Required: true,
				EnvVars:  []string{"CORROSION_UPSTREAM"},
			},
			&cli.BoolFlag{
				Name:    "latency",
				Usage:   "enable latency injection",
				EnvVars: []string{"CORROSION_LATENCY"},
			},
			&cli.DurationFlag{
				Name:    "latency-fixed",
				Usage:   "fixed delay added to each affected chunk",
				EnvVars: []string{"CORROSION_LATENCY_FIXED"},
			},
			&cli.DurationFlag{
				Name:    "latency-min",
				Usage:   "lower bound of the random extra delay",
				EnvVars: []string{"CORROSION_LATENCY_MIN"},
			},
			&cli.DurationFlag{
				Name:    "latency-max",
				Usage:   "upper bound of the random extra delay",
				EnvVars: []string{"CORROSION_LATENCY_MAX"},
			},
			&cli.Float64Flag{
				Name:    "latency-probability",
				Value:   1.0,
				Usage:   "probability that a chunk is delayed at all",
				EnvVars: []string{"CORROSION_LATENCY_PROBABILITY"},
			},
			&cli.BoolFlag{
				Name:    "loss",
				Usage:   "enable packet-loss simulation",
				EnvVars: []string{"CORROSION_LOSS"},
			},
			&cli.Float64Flag{
				Name:    "loss-probability",
				Usage:   "probability of an independent single-chunk drop",
				EnvVars: []string{"CORROSION_LOSS_PROBABILITY"},
			},
			&cli.IntFlag{
				Name:    "loss-burst-size",
				Usage:   "chunks dropped per loss burst",
				EnvVars: []string{"CORROSION_LOSS_BURST_SIZE"},
			},
			&cli.Float64Flag{
				Name:    "loss-burst-probability",
				Usage:   "probability of entering a loss burst",
				EnvVars: []string{"CORROSION_LOSS_BURST_PROBABILITY"},
			},
			&cli.BoolFlag{
				Name:    "bandwidth",
				Usage:   "enable bandwidth throttling",
				EnvVars: []string{"CORROSION_BANDWIDTH"},
			},
			&cli.Int64Flag{
				Name:    "bandwidth-rate",
				Usage:   "throughput limit in bytes per second (0 = unlimited)",
				EnvVars: []string{"CORROSION_BANDWIDTH_RATE"},
			},
			&cli.Int64Flag{
				Name:    "bandwidth-burst",
				Usage:   "burst capacity in bytes",
				EnvVars: []string{"CORROSION_BANDWIDTH_BURST"},
			},
			&cli.StringFlag{
				Name:    "api",
				Usage:   "address for the status API (empty = disabled)",
				EnvVars: []string{"CORROSION_API"},
			},
			&cli.BoolFlag{
				Name:    "proxy-metrics",
				Usage:   "export prometheus proxy metrics on the status API",
				EnvVars: []string{"CORROSION_PROXY_METRICS"},
			},
			&cli.BoolFlag{
				Name:    "runtime-metrics",
				Usage:   "export prometheus go runtime metrics on the status API",
				EnvVars: []string{"CORROSION_RUNTIME_METRICS"},
			},
			&cli.Int64Flag{
				Name:    "seed",
				Usage:   "seed for reproducible fault randomness (0 = entropy)",
				EnvVars: []string{"CORROSION_SEED"},
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	application, err := app.NewApp(app.Config{
		EnabledProxyMetrics:   c.Bool("proxy-metrics"),
		EnabledRuntimeMetrics: c.Bool("runtime-metrics"),
	})
	if err != nil {
		return err
	}
	logger := application.Logger

	policy, err := buildPolicy(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid fault policy: %s", err), 1)
	}

	if seed := c.Int64("seed"); seed != 0 {
		fault.Seed(seed)
		logger.Info().Int64("seed", seed).Msg("Using deterministic fault seed")
	}

	proxy := corrosion.NewProxy(
		c.String("name"),
		c.String("listen"),
		c.String("upstream"),
		policy,
		application.Metrics,
		logger,
	)
	if err := proxy.Start(); err != nil {
		return cli.Exit(fmt.Sprintf("failed to start proxy: %s", err), 1)
	}

	if addr := c.String("api"); addr != "" {
		api := corrosion.NewApiServer(proxy, application.Metrics, logger)
		go func() {
			if err := api.Listen(addr); err != nil {
				logger.Error().Err(err).Msg("Status API failed")
			}
		}()
	}

	// Handle SIGTERM and SIGINT to exit cleanly
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	<-signals
	proxy.Stop()
	return nil
}

// buildPolicy resolves the CLI flags into a validated fault policy.
func buildPolicy(c *cli.Context) (*fault.Policy, error) {
	policy := &fault.Policy{
		Latency: fault.LatencyPolicy{
			Enabled:     c.Bool("latency"),
			Fixed:       c.Duration("latency-fixed"),
			Probability: c.Float64("latency-probability"),
		},
		Loss: fault.LossPolicy{
			Enabled:          c.Bool("loss"),
			Probability:      c.Float64("loss-probability"),
			BurstSize:        c.Int("loss-burst-size"),
			BurstProbability: c.Float64("loss-burst-probability"),
		},
		Bandwidth: fault.BandwidthPolicy{
			Enabled: c.Bool("bandwidth"),
			Rate:    c.Int64("bandwidth-rate"),
			Burst:   c.Int64("bandwidth-burst"),
		},
	}

	if c.IsSet("latency-min") || c.IsSet("latency-max") {
		policy.Latency.Range = &fault.DelayRange{
			Min: c.Duration("latency-min"),
			Max: c.Duration("latency-max"),
		}
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

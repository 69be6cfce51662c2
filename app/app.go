package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/devfire/corrosion/collectors"
)

// Config selects which optional resources the app initializes.
type Config struct {
	EnabledProxyMetrics   bool
	EnabledRuntimeMetrics bool
}

// App is used for keep central location of configuration and resources.
type App struct {
	Config  Config
	Logger  zerolog.Logger
	Metrics *collectors.MetricsContainer
}

// NewApp initialize App instance.
func NewApp(config Config) (*App, error) {
	app := &App{Config: config}

	err := start([]unit{
		{"Logger", app.setLogger},
		{"Metrics", app.setMetrics},
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// unit keeps initialization tasks.
// could be used later for graceful stop function per service if it is required.
type unit struct {
	name  string
	start func() error
}

// start run initialized step for resource.
// could be wrapped with debug information and resource usage.
func start(units []unit) error {
	for _, unit := range units {
		err := unit.start()
		if err != nil {
			return fmt.Errorf("initialization %s failed: %w", unit.name, err)
		}
	}
	return nil
}

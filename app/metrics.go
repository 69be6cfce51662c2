package app

import (
	"github.com/devfire/corrosion/collectors"
)

func (a *App) setMetrics() error {
	metrics := collectors.NewMetricsContainer(nil)
	if a.Config.EnabledProxyMetrics {
		metrics.ProxyMetrics = collectors.NewProxyMetricCollectors()
	}
	if a.Config.EnabledRuntimeMetrics {
		metrics.RuntimeMetrics = collectors.NewRuntimeMetricCollectors()
	}
	a.Metrics = metrics
	return nil
}

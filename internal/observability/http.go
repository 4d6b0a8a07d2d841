package observability

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
)

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// HTTPMetrics returns the process-wide Fiber Prometheus middleware. Its
// collectors live in the default registry, so it is built once.
func HTTPMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}

package engine

// MetricsReporter receives engine activity. internal/metrics implements it
// with Prometheus.
type MetricsReporter interface {
	RecordRequest(method, outcome string, seconds float64)
	RecordFailure(op, kind string)
	// AddLiveHandles is called with +1 per issued handle and with the
	// negated count of every handle released.
	AddLiveHandles(delta int)
	AddBytesRead(n int)
	RecordShutdown(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string, string, float64) {}
func (noopMetrics) RecordFailure(string, string)          {}
func (noopMetrics) AddLiveHandles(int)                    {}
func (noopMetrics) AddBytesRead(int)                      {}
func (noopMetrics) RecordShutdown(float64)                {}

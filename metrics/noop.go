package metrics

import "time"

// NoopRecorder discards everything. It is used when metrics are disabled.
type NoopRecorder struct{}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

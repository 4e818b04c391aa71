package metrics

import "time"

// Recorder receives counters and latencies from every phase of a session.
// Labels carry at least "phase" and "network".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Counter names
const (
	Attempt   = "attempt"
	Failure   = "failure"
	Abort     = "abort"
	PollTick  = "poll_tick"
	PollMiss  = "poll_miss"
	Completed = "completed"
	Expired   = "expired"
)

// Latency names
const (
	HTTPRequest = "http_request"
	Tick        = "poll_tick"
)

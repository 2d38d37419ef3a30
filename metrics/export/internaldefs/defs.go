package internaldefs

import (
	erpclient "github.com/anujChoudhary-1712/erp-fn-sub001"
)

// Def names one exported series.
type Def struct {
	ID   erpclient.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "erpclient_audit_dropped_total"

var CounterDefs = []Def{
	{ID: erpclient.MetricRequests, Name: "erpclient_requests_total", Help: "Requests issued by callers."},
	{ID: erpclient.MetricTransportErrors, Name: "erpclient_transport_errors_total", Help: "Attempts that produced no HTTP response."},
	{ID: erpclient.MetricUnauthorized, Name: "erpclient_unauthorized_total", Help: "401 responses on a first attempt."},
	{ID: erpclient.MetricUnauthorizedAfterRetry, Name: "erpclient_unauthorized_after_retry_total", Help: "401 responses returned after the single replay."},
	{ID: erpclient.MetricRefreshStarted, Name: "erpclient_refresh_started_total", Help: "Token refresh calls started."},
	{ID: erpclient.MetricRefreshSuccess, Name: "erpclient_refresh_success_total", Help: "Token refresh calls that returned a new token."},
	{ID: erpclient.MetricRefreshFailure, Name: "erpclient_refresh_failure_total", Help: "Token refresh calls that failed and ended the session."},
	{ID: erpclient.MetricProactiveRefresh, Name: "erpclient_proactive_refresh_total", Help: "Refreshes triggered before sending by an expiring token."},
	{ID: erpclient.MetricRequestQueued, Name: "erpclient_requests_queued_total", Help: "Requests parked behind a running refresh."},
	{ID: erpclient.MetricRequestReplayed, Name: "erpclient_requests_replayed_total", Help: "Requests replayed with a refreshed token."},
	{ID: erpclient.MetricStaleReplay, Name: "erpclient_stale_replays_total", Help: "401s answered with a token from an already finished refresh."},
	{ID: erpclient.MetricSessionEnded, Name: "erpclient_sessions_ended_total", Help: "Sessions torn down after a failed refresh."},
	{ID: erpclient.MetricLogout, Name: "erpclient_logout_total", Help: "Explicit logouts."},
}

var HistogramDefs = []Def{
	{ID: erpclient.MetricRequestLatency, Name: "erpclient_request_latency_seconds", Help: "Round-trip latency of a single HTTP attempt."},
	{ID: erpclient.MetricRefreshLatency, Name: "erpclient_refresh_latency_seconds", Help: "Latency of the token refresh call."},
}

// HistogramBounds are the upper bounds, in seconds, of the client's latency buckets.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Cumulative converts raw per-bucket counts into cumulative counts over HistogramBounds.
// Missing buckets count as zero.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

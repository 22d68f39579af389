package internaldefs

import (
	authgate "github.com/dlanzer/authgate"
)

// CounterDef defines a public type used by authgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authgate APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session core.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricLoginLockedOut, Name: "authgate_login_locked_out_total", Help: "Login attempts denied by the attempt guard."},
	{ID: authgate.MetricSignupSuccess, Name: "authgate_signup_success_total", Help: "Successful signups."},
	{ID: authgate.MetricSignupValidationFailed, Name: "authgate_signup_validation_failed_total", Help: "Signups rejected by credential validation."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout operations."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: authgate.MetricSessionRestored, Name: "authgate_session_restored_total", Help: "Sessions restored from persisted state."},
	{ID: authgate.MetricSessionRestoreRejected, Name: "authgate_session_restore_rejected_total", Help: "Persisted sessions rejected during restore."},
	{ID: authgate.MetricRequestUnauthorized, Name: "authgate_request_unauthorized_total", Help: "Dispatched requests answered with 401."},
	{ID: authgate.MetricRequestTimeout, Name: "authgate_request_timeout_total", Help: "Dispatched requests that timed out."},
	{ID: authgate.MetricUploadRejected, Name: "authgate_upload_rejected_total", Help: "Uploads rejected before dispatch."},
}

// HistogramDefs is an exported constant or variable used by the session core.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricRequestLatency, Name: "authgate_request_latency_seconds", Help: "Dispatched request latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session core.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session core.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

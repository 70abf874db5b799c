package metrics

// AuthMetrics counts login outcomes.
type AuthMetrics interface {
	// RecordLogin records one authentication attempt.
	//
	// Parameters:
	//   - outcome: "success", "not_allowed", "invalid_credentials" or "rate_limited"
	RecordLogin(outcome string)
}

// Login outcomes reported to AuthMetrics.
const (
	LoginSuccess            = "success"
	LoginNotAllowed         = "not_allowed"
	LoginInvalidCredentials = "invalid_credentials"
	LoginRateLimited        = "rate_limited"
)

// NewNoopAuthMetrics returns an AuthMetrics that discards everything.
func NewNoopAuthMetrics() AuthMetrics {
	return noopAuthMetrics{}
}

type noopAuthMetrics struct{}

func (noopAuthMetrics) RecordLogin(outcome string) {}

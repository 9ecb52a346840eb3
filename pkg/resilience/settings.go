package resilience

import "time"

const (
	defaultBreakerInterval  = time.Minute
	defaultBreakerTimeout   = 30 * time.Second
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 1
)

// BuildSettings converts primitive tuning knobs into breaker Settings,
// substituting safe defaults for zero or negative values.
func BuildSettings(name string, intervalSeconds, timeoutSeconds, failureThreshold, successThreshold int) Settings {
	s := Settings{
		Name:             name,
		Interval:         time.Duration(intervalSeconds) * time.Second,
		Timeout:          time.Duration(timeoutSeconds) * time.Second,
		FailureThreshold: uint32(failureThreshold),
		SuccessThreshold: uint32(successThreshold),
	}

	if s.Interval <= 0 {
		s.Interval = defaultBreakerInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultBreakerTimeout
	}
	if failureThreshold <= 0 {
		s.FailureThreshold = defaultFailureThreshold
	}
	if successThreshold <= 0 {
		s.SuccessThreshold = defaultSuccessThreshold
	}

	return s
}

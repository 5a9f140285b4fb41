package resilience

import "time"

// Config tunes the retry loop and the per-operation circuit breakers guarding
// the pipeline's externally bound calls: queue publishes and LLM completions.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration
	BreakerProbeCalls   uint32
}

// DefaultConfig keeps attempts low: LLM completions already carry a long HTTP
// timeout, so retrying more than twice would stall a summary job for minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,

		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerCooldown:     30 * time.Second,
		BreakerProbeCalls:   1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.BackoffMultiplier < 1.0 {
		out.BackoffMultiplier = def.BackoffMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = def.BreakerCooldown
	}
	if out.BreakerProbeCalls == 0 {
		out.BreakerProbeCalls = def.BreakerProbeCalls
	}

	return out
}

package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// BreakerConfig is the env-overridable tuning for one dependency class.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// GetSearchConfig returns the search-dependency breaker configuration.
// The search breaker is the most conservative: one half-open trial call
// and a full minute of recovery timeout.
func GetSearchConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      getEnvUint32("CB_SEARCH_MAX_REQUESTS", 1),
		Interval:         getEnvDuration("CB_SEARCH_INTERVAL", 60*time.Second),
		Timeout:          getEnvDuration("CB_SEARCH_TIMEOUT", 60*time.Second),
		FailureThreshold: getEnvUint32("CB_SEARCH_FAILURE_THRESHOLD", 5),
		SuccessThreshold: getEnvUint32("CB_SEARCH_SUCCESS_THRESHOLD", 1),
	}
}

// GetHTTPConfig returns the generic HTTP sidecar breaker configuration
// (LLM service, document index).
func GetHTTPConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      getEnvUint32("CB_HTTP_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_HTTP_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_HTTP_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_HTTP_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_HTTP_SUCCESS_THRESHOLD", 2),
	}
}

// GetRedisConfig returns the cache-backend breaker configuration.
func GetRedisConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      getEnvUint32("CB_REDIS_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_REDIS_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_REDIS_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_REDIS_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_REDIS_SUCCESS_THRESHOLD", 2),
	}
}

// ToConfig converts BreakerConfig to a breaker Config.
func (bc BreakerConfig) ToConfig() Config {
	return Config{
		MaxRequests:      bc.MaxRequests,
		Interval:         bc.Interval,
		Timeout:          bc.Timeout,
		FailureThreshold: bc.FailureThreshold,
		SuccessThreshold: bc.SuccessThreshold,
	}
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

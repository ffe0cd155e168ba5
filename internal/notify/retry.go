package notify

import (
	"math/rand/v2"
	"time"
)

// DefaultMaxAttempts bounds deliveries of one contact message per notifier.
const DefaultMaxAttempts = 4

// JitterFactor spreads each delay uniformly over base*(1±JitterFactor).
const JitterFactor = 0.2

// backoffSchedule[i] is the wait after the (i+1)th failed attempt. Later
// failures reuse the last entry.
var backoffSchedule = [...]time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// NextRetryDelay returns the jittered wait after failure number failed,
// counted from zero.
func NextRetryDelay(failed int) time.Duration {
	base := backoffSchedule[max(0, min(failed, len(backoffSchedule)-1))]
	spread := float64(base) * JitterFactor
	return base + time.Duration((rand.Float64()*2-1)*spread)
}

// IsExhausted reports whether attempts has reached the limit.
func IsExhausted(attempts, limit int) bool {
	return attempts >= limit
}

// RetryDelays returns a copy of the base schedule.
func RetryDelays() []time.Duration {
	return append([]time.Duration(nil), backoffSchedule[:]...)
}

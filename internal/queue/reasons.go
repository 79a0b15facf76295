package queue

// Reason names why an offer was rejected or a polled envelope was dropped
// (§4.2, §7). Every rejection path in this package returns exactly one of
// these.
type Reason string

const (
	ReasonInvalidType         Reason = "invalid_type"
	ReasonAgeExpired          Reason = "age_expired"
	ReasonQueueFull           Reason = "queue_full"
	ReasonThrottled           Reason = "throttled"
	ReasonLowPriorityOverflow Reason = "low_priority_overflow"
	ReasonExtremeOverflow     Reason = "extreme_overflow"
	ReasonCircuitBreaker      Reason = "circuit_breaker"
	ReasonAgeExpiredOnPoll    Reason = "age_expired_on_poll"
)

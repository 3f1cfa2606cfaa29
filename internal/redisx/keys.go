package redisx

import "time"

const (
	// Idempotent placement: idem:order:place:{user_id}:{idempotency_key} -> order_id (IdemPending while placing)
	KeyIdemOrderPlace = "idem:order:place:%d:%s"
	IdemPending       = "pending"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Live dashboard, per UTC day: hash stats:day:{YYYY-MM-DD}
	// fields: orders, revenue, status:{status}
	KeyStatsDay = "stats:day:%s"

	// Units sold per variant, per UTC day: zset stats:day:{YYYY-MM-DD}:variants
	KeyStatsDayVariants = "stats:day:%s:variants"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLStats       = 45 * 24 * time.Hour
)

package metrics

import "fmt"

const (
	// KeyPrefixMetrics is the prefix for all metrics keys
	KeyPrefixMetrics = "archivesync:metrics"
	// KeyPrefixArchived is the prefix for successful push counters
	KeyPrefixArchived = "archived"
	// KeyPrefixRejected is the prefix for validation rejection counters
	KeyPrefixRejected = "rejected"
	// KeyPrefixErrors is the prefix for push error counters
	KeyPrefixErrors = "errors"
	// KeyRecentPushes is the Redis key for the recent pushes list
	KeyRecentPushes = "archivesync:metrics:recent:pushes"
	// KeyLastPush is the Redis key for the last successful push timestamp
	KeyLastPush = "archivesync:metrics:last_push"
	// MaxRecentPushes is the maximum number of recent pushes to keep
	MaxRecentPushes = 100
	// MetricsTTLDays is the TTL in days for metrics counters
	MetricsTTLDays = 30
	// RecentPushesTTLDays is the TTL in days for the recent pushes list
	RecentPushesTTLDays = 7
)

// ObjectKind distinguishes container pushes from member pushes in the
// per-kind counters.
type ObjectKind string

const (
	KindContainer ObjectKind = "container"
	KindMember    ObjectKind = "member"
)

// RedisKeys provides methods to build Redis keys consistently
type RedisKeys struct {
	prefix string
}

// NewRedisKeys creates a new RedisKeys instance
func NewRedisKeys(prefix string) *RedisKeys {
	return &RedisKeys{prefix: prefix}
}

// Archived returns the Redis key for the success counter for a kind
func (k *RedisKeys) Archived(kind ObjectKind) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, KeyPrefixArchived, kind)
}

// Rejected returns the Redis key for the validation rejection counter for a kind
func (k *RedisKeys) Rejected(kind ObjectKind) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, KeyPrefixRejected, kind)
}

// Errors returns the Redis key for the push error counter for a kind
func (k *RedisKeys) Errors(kind ObjectKind) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, KeyPrefixErrors, kind)
}

package redis

import "strings"

const keyNamespace = "aharraa"

// Keyspace builds colon separated keys under the service namespace. Blank
// parts are dropped.
type Keyspace struct{}

func (Keyspace) key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func (k Keyspace) IdempotencyKey(scope, id string) string { return k.key("idempotency", scope, id) }

func (k Keyspace) RateLimitKey(scope string) string { return k.key("rate_limit", scope) }

func (k Keyspace) LockKey(name string) string { return k.key("lock", name) }

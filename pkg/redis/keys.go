package redis

import "strings"

// Every key the service writes lives under settle:<kind>:...
const (
	keyNamespace      = "settle"
	idempotencyPrefix = "idempotency"
	cachePrefix       = "cache"
	streamPrefix      = "events"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) CacheKey(scope string, parts ...string) string {
	return joinKey(append([]string{cachePrefix, scope}, parts...)...)
}

// StreamKey names the stream events for one aggregate type are appended to.
func (c *Client) StreamKey(aggregate string) string {
	return joinKey(streamPrefix, aggregate)
}

// joinKey drops blank segments so optional parts do not leave "::" gaps.
func joinKey(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

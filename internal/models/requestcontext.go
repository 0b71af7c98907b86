package models

import "time"

// RequestContext carries per-request correlation data. It is created at
// request entry, read-only afterwards, and scoped to a single request.
type RequestContext struct {
	RequestID     string
	TransactionID string
	ReceivedAt    time.Time
	Headers       map[string]string
}

// ForwardHeaders returns the header set to attach to downstream deliveries:
// the inbound headers plus the correlation identifiers.
func (c RequestContext) ForwardHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers)+2)
	for k, v := range c.Headers {
		headers[k] = v
	}
	headers["X-Request-Id"] = c.RequestID
	if c.TransactionID != "" {
		headers["X-Transaction-Id"] = c.TransactionID
	}
	return headers
}

package models

// Mapping source constants. The intake service resolves success targets under
// the message-in source and failure notifications under the message-out
// source.
const (
	SourceTypeMessageIn = "message-in"
	SourceMessageIn     = "message-in"
	SourceMessageOut    = "message-out"
)

// MappingQuery is the lookup key for the routing table. It is never persisted
// by the intake service.
type MappingQuery struct {
	SourceType  string `json:"source_type"`
	Source      string `json:"source"`
	ContentType string `json:"content_type"`
	MessageType string `json:"message_type"`
}

// RoutingTarget names a downstream delivery target. Ordering of targets as
// returned by the resolver is significant and must be preserved.
type RoutingTarget struct {
	Target string `json:"target"`
}

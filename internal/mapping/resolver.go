// Package mapping resolves routing-table queries: given a (source_type,
// source, content_type, message_type) tuple, an ordered list of downstream
// target names. Ordering is significant and is never altered here.
package mapping

import (
	"context"

	"github.com/example/message-intake/internal/models"
)

// Resolver answers routing-table queries.
type Resolver interface {
	Query(ctx context.Context, query models.MappingQuery) ([]models.RoutingTarget, error)
}

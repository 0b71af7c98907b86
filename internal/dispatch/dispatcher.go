package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/message"
	"github.com/example/message-intake/internal/models"
	"github.com/example/message-intake/internal/util"
)

// EncodePayload selects the wire form for a delivery: the original document
// bytes for XML content, the canonical processed form for JSON. When no
// processed form exists (normalization failed before producing one, or the
// content type was never recognised) the delivery carries the raw payload,
// so failure notifications always transport the bytes that were received.
func EncodePayload(msg *message.Message) []byte {
	switch msg.ContentType {
	case util.ContentTypeXML:
		return msg.Document
	case util.ContentTypeJSON:
		if len(msg.Processed) > 0 {
			return msg.Processed
		}
	}
	if len(msg.Document) > 0 {
		return msg.Document
	}
	return msg.RawPayload
}

// Dispatcher delivers one message to an ordered target list.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher constructs a Dispatcher over the supplied registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("dispatch: registry is required")
	}
	return &Dispatcher{registry: registry, logger: logger}, nil
}

// Dispatch resolves and delivers to each target strictly in the resolver's
// order. The first failure aborts the remaining targets; there is no retry,
// no rollback of earlier deliveries and no partial-success accounting.
func (d *Dispatcher) Dispatch(ctx context.Context, reqCtx models.RequestContext, msg *message.Message, targets []models.RoutingTarget) error {
	if len(targets) == 0 {
		return nil
	}

	payload := EncodePayload(msg)
	headers := reqCtx.ForwardHeaders()

	for _, target := range targets {
		deliverer, err := d.registry.Resolve(target.Target)
		if err != nil {
			return err
		}

		d.logger.Debug().
			Str("request_id", reqCtx.RequestID).
			Str("target", target.Target).
			Str("content_type", msg.ContentType).
			Msg("sending new request to target")

		if err := deliverer.Deliver(ctx, payload, headers); err != nil {
			return err
		}
	}
	return nil
}

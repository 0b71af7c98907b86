// Package pipeline implements the intake validation-and-routing pipeline:
// the ordered sequence of checks, the transaction state transition, and the
// dual-path success/failure fan-out.
package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/definitions"
	"github.com/example/message-intake/internal/intake"
	"github.com/example/message-intake/internal/mapping"
	"github.com/example/message-intake/internal/message"
	"github.com/example/message-intake/internal/models"
	"github.com/example/message-intake/internal/schema"
	"github.com/example/message-intake/internal/storage"
	"github.com/example/message-intake/internal/transaction"
	"github.com/example/message-intake/internal/util"
)

// Caller-visible failure messages.
const (
	msgMissingBody        = "Missing message body"
	msgMissingTransaction = "Missing X-Transaction-Id HTTP header"
	msgInvalidIncoming    = "Received an invalid incoming message"
	msgTransactionAbsent  = "Could not find such transaction"
	msgInvalidDocument    = "Received an invalid XML message"
	msgDefinitionAbsent   = "Could not find such message definition"
)

// Archiver persists the raw payload and returns its storage locator.
type Archiver interface {
	Archive(ctx context.Context, reqCtx models.RequestContext, payload []byte, direction storage.Direction) (string, error)
}

// SchemaChecker runs the schema validation step for a normalized message.
type SchemaChecker interface {
	Check(ctx context.Context, msg *message.Message) error
}

// Dispatcher fans a message out to an ordered target list.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqCtx models.RequestContext, msg *message.Message, targets []models.RoutingTarget) error
}

// Pipeline wires the intake collaborators together. One Process call handles
// one request synchronously from first check to final delivery; the only
// shared resource underneath is the transaction store.
type Pipeline struct {
	store      transaction.Store
	archiver   Archiver
	checker    SchemaChecker
	resolver   mapping.Resolver
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// New constructs a Pipeline, validating that every collaborator is present.
func New(store transaction.Store, archiver Archiver, checker SchemaChecker, resolver mapping.Resolver, dispatcher Dispatcher, logger zerolog.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline: transaction store is required")
	}
	if archiver == nil {
		return nil, errors.New("pipeline: archiver is required")
	}
	if checker == nil {
		return nil, errors.New("pipeline: schema checker is required")
	}
	if resolver == nil {
		return nil, errors.New("pipeline: mapping resolver is required")
	}
	if dispatcher == nil {
		return nil, errors.New("pipeline: dispatcher is required")
	}
	logger = logger.With().Str("component", "pipeline").Logger()
	return &Pipeline{
		store:      store,
		archiver:   archiver,
		checker:    checker,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Process runs the full intake pipeline for one request. A nil return means
// the message was received, the transaction transitioned to RECEIVED and all
// success targets were delivered to. Invalid and NotFound failures from the
// normalizer, the state gate and the schema check have already been
// compensated when they are returned; every other failure is unexpected and
// uncompensated.
func (p *Pipeline) Process(ctx context.Context, reqCtx models.RequestContext, raw []byte, mimeType string) *intake.Error {
	log := p.logger.With().
		Str("request_id", reqCtx.RequestID).
		Str("transaction_id", reqCtx.TransactionID).
		Logger()

	if len(raw) == 0 {
		log.Error().Msg(msgMissingBody)
		return intake.Invalid(msgMissingBody, nil)
	}
	if _, err := util.ParseUUIDv4(reqCtx.TransactionID); err != nil {
		log.Error().Err(err).Msg(msgMissingTransaction)
		return intake.Invalid(msgMissingTransaction, err)
	}

	log.Debug().
		Time("requested_at", reqCtx.ReceivedAt).
		Msg("processing intake request")

	msg, err := message.Normalize(raw, mimeType)
	if err != nil {
		log.Error().Err(err).Msg(msgInvalidIncoming)
		return p.compensate(ctx, reqCtx, partialMessage(raw, mimeType), log, intake.Invalid(msgInvalidIncoming, err))
	}

	initiated, err := p.store.CheckInitiated(ctx, reqCtx.TransactionID)
	if err != nil {
		log.Error().Err(err).Msg("transaction state check failed")
		return intake.Unexpected("transaction state check failed", err)
	}
	if !initiated {
		log.Error().Msg(msgTransactionAbsent)
		return p.compensate(ctx, reqCtx, msg, log, intake.NotFound(msgTransactionAbsent, nil))
	}

	locator, err := p.archiver.Archive(ctx, reqCtx, raw, storage.DirectionIncoming)
	if err != nil {
		log.Error().Err(err).Msg("payload archive failed")
		return intake.Unexpected("payload archive failed", err)
	}
	msg.StoragePath = locator

	if err := p.checker.Check(ctx, msg); err != nil {
		switch {
		case errors.Is(err, definitions.ErrDefinitionNotFound):
			log.Error().Err(err).Msg(msgDefinitionAbsent)
			return p.compensate(ctx, reqCtx, msg, log, intake.NotFound(msgDefinitionAbsent, err))
		case errors.Is(err, schema.ErrDocumentInvalid):
			log.Error().Err(err).Msg(msgInvalidDocument)
			return p.compensate(ctx, reqCtx, msg, log, intake.Invalid(msgInvalidDocument, err))
		default:
			log.Error().Err(err).Msg("schema validation failed unexpectedly")
			return intake.Unexpected("schema validation failed", err)
		}
	}

	received, err := p.store.Receive(ctx, reqCtx.TransactionID, msg.StoragePath, msg.Version)
	if err != nil {
		log.Error().Err(err).Msg("transaction receive failed")
		return intake.Unexpected("transaction receive failed", err)
	}
	if !received {
		// A concurrent attempt won the compare-and-set; to this caller the
		// transaction is indistinguishable from one that never existed.
		log.Error().Msg(msgTransactionAbsent)
		return p.compensate(ctx, reqCtx, msg, log, intake.NotFound(msgTransactionAbsent, nil))
	}

	targets, err := p.resolver.Query(ctx, models.MappingQuery{
		SourceType:  models.SourceTypeMessageIn,
		Source:      models.SourceMessageIn,
		ContentType: msg.ContentType,
		MessageType: msg.MessageType,
	})
	if err != nil {
		log.Error().Err(err).Msg("success mapping query failed")
		return intake.Unexpected("mapping query failed", err)
	}

	// A delivery failure here leaves the transaction RECEIVED with no
	// failure notification sent; compensation only covers the checks.
	if err := p.dispatcher.Dispatch(ctx, reqCtx, msg, targets); err != nil {
		log.Error().Err(err).Msg("downstream delivery failed")
		return intake.Unexpected("downstream delivery failed", err)
	}

	log.Info().
		Str("message_type", msg.MessageType).
		Str("version", msg.Version).
		Int("targets", len(targets)).
		Msg("message received and routed")
	return nil
}

// compensate rejects the transaction, fans the payload out to the failure
// routing targets, and hands back the original classified error. Failures
// inside compensation surface as unexpected instead of the original error.
func (p *Pipeline) compensate(ctx context.Context, reqCtx models.RequestContext, msg *message.Message, log zerolog.Logger, orig *intake.Error) *intake.Error {
	if reqCtx.TransactionID != "" {
		rejected, err := p.store.Reject(ctx, reqCtx.TransactionID, msg.StoragePath, msg.Version)
		if err != nil {
			log.Error().Err(err).Msg("transaction reject failed")
			return intake.Unexpected("transaction reject failed", err)
		}
		if !rejected {
			// Nothing to reject: the transaction never existed or already
			// left INITIATED.
			log.Debug().Msg("reject skipped, transaction not in initiated state")
		}
	}

	targets, err := p.resolver.Query(ctx, models.MappingQuery{
		SourceType:  models.SourceTypeMessageIn,
		Source:      models.SourceMessageOut,
		ContentType: msg.ContentType,
		MessageType: models.FailureMessageType,
	})
	if err != nil {
		log.Error().Err(err).Msg("failure mapping query failed")
		return intake.Unexpected("mapping query failed", err)
	}

	if err := p.dispatcher.Dispatch(ctx, reqCtx, msg, targets); err != nil {
		log.Error().Err(err).Msg("failure notification delivery failed")
		return intake.Unexpected("failure notification delivery failed", err)
	}

	log.Info().
		Str("class", className(orig.Class)).
		Int("targets", len(targets)).
		Msg("intake failure compensated")
	return orig
}

// partialMessage builds the minimal message used for compensation when
// normalization itself failed.
func partialMessage(raw []byte, mimeType string) *message.Message {
	tag, _ := util.ContentTypeTag(mimeType)
	return &message.Message{
		RawPayload:  raw,
		ContentType: tag,
		Document:    raw,
	}
}

func className(class intake.Class) string {
	switch class {
	case intake.ClassInvalid:
		return "invalid"
	case intake.ClassNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

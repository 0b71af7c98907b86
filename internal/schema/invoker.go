package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/definitions"
	"github.com/example/message-intake/internal/message"
	"github.com/example/message-intake/internal/storage"
	"github.com/example/message-intake/internal/util"
)

// ErrDocumentInvalid marks a document that failed its schema check. The
// pipeline distinguishes it from infrastructure failures.
var ErrDocumentInvalid = errors.New("schema: document does not conform to schema")

// Invoker resolves the schema for a message's version key and runs the check.
type Invoker struct {
	lookup        definitions.Lookup
	store         storage.BlobStore
	runtimeBucket string
	xmlValidator  Validator
	jsonValidator Validator
	logger        zerolog.Logger
}

// NewInvoker constructs the schema validation invoker.
func NewInvoker(lookup definitions.Lookup, store storage.BlobStore, runtimeBucket string, logger zerolog.Logger) (*Invoker, error) {
	if lookup == nil {
		return nil, errors.New("schema: definition lookup is required")
	}
	if store == nil {
		return nil, errors.New("schema: blob store is required")
	}
	if runtimeBucket == "" {
		return nil, errors.New("schema: runtime bucket is required")
	}
	return &Invoker{
		lookup:        lookup,
		store:         store,
		runtimeBucket: runtimeBucket,
		xmlValidator:  NewXSDValidator(),
		jsonValidator: NewJSONSchemaValidator(),
		logger:        logger,
	}, nil
}

// Check resolves the message's schema definition, fetches the schema bytes
// and validates the document. It returns definitions.ErrDefinitionNotFound
// when no definition matches the version key and ErrDocumentInvalid when the
// document fails the check.
func (i *Invoker) Check(ctx context.Context, msg *message.Message) error {
	def, err := i.lookup.Get(ctx, msg.Key)
	if err != nil {
		return err
	}

	schemaBody, err := i.store.Get(ctx, i.runtimeBucket, def.StoragePath)
	if err != nil {
		return fmt.Errorf("schema: fetch schema %s: %w", def.StoragePath, err)
	}

	validator := i.xmlValidator
	document := msg.Document
	if msg.ContentType == util.ContentTypeJSON {
		validator = i.jsonValidator
		document = msg.Processed
	}

	valid, err := validator.Validate(schemaBody, document)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%w: %s", ErrDocumentInvalid, msg.Version)
	}

	i.logger.Debug().
		Str("message_type", msg.MessageType).
		Str("version", msg.Version).
		Msg("document passed schema validation")
	return nil
}

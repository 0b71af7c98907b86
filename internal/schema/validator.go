// Package schema performs the schema-validation step of the intake pipeline:
// it resolves the schema document for a message's version key, fetches the
// schema bytes from blob storage, and runs the content-type appropriate
// validity check. The validation engines themselves sit behind the Validator
// interface; schema and document bytes are bound only for the duration of a
// single check.
package schema

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator is the black-box validity check: given schema bytes and document
// bytes, report whether the document conforms. Implementations keep no state
// across calls.
type Validator interface {
	Validate(schemaBody, document []byte) (bool, error)
}

// XSDValidator checks an XML document against an XSD document. It verifies
// well-formedness and that the document's root element and namespace agree
// with the schema's target namespace and declared root element.
type XSDValidator struct{}

// NewXSDValidator constructs the XML validator.
func NewXSDValidator() *XSDValidator { return &XSDValidator{} }

// Validate reports whether the XML document conforms to the schema. A
// malformed schema is an error; a malformed or mismatched document is simply
// invalid.
func (v *XSDValidator) Validate(schemaBody, document []byte) (bool, error) {
	targetNS, rootName, err := parseXSD(schemaBody)
	if err != nil {
		return false, fmt.Errorf("schema: parse xsd: %w", err)
	}

	docRoot, docNS, err := documentRoot(document)
	if err != nil {
		// Not well-formed: invalid, not an infrastructure failure.
		return false, nil
	}

	if targetNS != "" && docNS != targetNS {
		return false, nil
	}
	if rootName != "" && docRoot != rootName {
		return false, nil
	}
	return true, nil
}

// parseXSD extracts the targetNamespace and the first declared root element
// name from an XSD document.
func parseXSD(schemaBody []byte) (targetNS, rootName string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(schemaBody))
	depth := 0
	for {
		tok, tokErr := dec.Token()
		if errors.Is(tokErr, io.EOF) {
			break
		}
		if tokErr != nil {
			return "", "", tokErr
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				if t.Name.Local != "schema" {
					return "", "", fmt.Errorf("unexpected root element %q", t.Name.Local)
				}
				for _, attr := range t.Attr {
					if attr.Name.Local == "targetNamespace" {
						targetNS = attr.Value
					}
				}
			}
			if depth == 2 && t.Name.Local == "element" && rootName == "" {
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						rootName = attr.Value
					}
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	if depth != 0 {
		return "", "", errors.New("unbalanced schema document")
	}
	return targetNS, rootName, nil
}

// documentRoot walks the whole document to confirm well-formedness and
// returns the root element name and namespace.
func documentRoot(document []byte) (name, ns string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(document))
	seenRoot := false
	for {
		tok, tokErr := dec.Token()
		if errors.Is(tokErr, io.EOF) {
			break
		}
		if tokErr != nil {
			return "", "", tokErr
		}
		if start, ok := tok.(xml.StartElement); ok && !seenRoot {
			seenRoot = true
			name = start.Name.Local
			ns = start.Name.Space
		}
	}
	if !seenRoot {
		return "", "", errors.New("document has no root element")
	}
	return name, ns, nil
}

// JSONSchemaValidator checks a JSON document against a JSON Schema using the
// jsonschema/v5 compiler.
type JSONSchemaValidator struct{}

// NewJSONSchemaValidator constructs the JSON validator.
func NewJSONSchemaValidator() *JSONSchemaValidator { return &JSONSchemaValidator{} }

// Validate reports whether the JSON document conforms to the schema. A
// schema that does not compile is an error; a non-conforming document is
// invalid.
func (v *JSONSchemaValidator) Validate(schemaBody, document []byte) (bool, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaBody)); err != nil {
		return false, fmt.Errorf("schema: add resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return false, fmt.Errorf("schema: compile: %w", err)
	}

	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return false, nil
	}
	if err := compiled.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return false, nil
		}
		return false, fmt.Errorf("schema: validate: %w", err)
	}
	return true, nil
}

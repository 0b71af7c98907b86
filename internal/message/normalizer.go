// Package message parses raw inbound payloads into the structured form the
// intake pipeline works with: the original document, a canonical processed
// representation, the business message type, and the schema version key.
package message

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/example/message-intake/internal/models"
	"github.com/example/message-intake/internal/util"
)

// iso20022NamespacePrefix precedes the message identifier in the document
// namespace, e.g. urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08.
const iso20022NamespacePrefix = "urn:iso:std:iso:20022:tech:xsd:"

// Message is the in-memory representation of one inbound business message.
// It is created once per request and, apart from StoragePath which the
// archiver sets exactly once, is immutable after normalization.
type Message struct {
	RawPayload  []byte
	ContentType string
	Document    []byte
	Processed   []byte
	MessageType string
	Version     string
	Key         models.VersionKey
	StoragePath string
}

// Normalize parses the raw payload according to the declared MIME type and
// derives the canonical processed form, the message type and the version key.
// Any malformed input yields an error; the caller classifies it.
func Normalize(raw []byte, mimeType string) (*Message, error) {
	tag, ok := util.ContentTypeTag(mimeType)
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q", mimeType)
	}

	msg := &Message{
		RawPayload:  raw,
		ContentType: tag,
		Document:    raw,
	}

	var (
		namespace string
		err       error
	)
	switch tag {
	case util.ContentTypeXML:
		namespace, err = msg.normalizeXML(raw)
	case util.ContentTypeJSON:
		namespace, err = msg.normalizeJSON(raw)
	}
	if err != nil {
		return nil, err
	}

	identifier, err := parseIdentifier(namespace)
	if err != nil {
		return nil, err
	}

	msg.MessageType = identifier.messageType
	msg.Version = identifier.full
	msg.Key = models.VersionKey{
		UniqueType: identifier.messageType,
		Major:      identifier.variant,
		Minor:      identifier.version,
	}

	return msg, nil
}

func (m *Message) normalizeXML(raw []byte) (string, error) {
	root, err := parseXMLTree(raw)
	if err != nil {
		return "", fmt.Errorf("parse xml document: %w", err)
	}

	processed, err := json.Marshal(map[string]any{root.name: root.toValue()})
	if err != nil {
		return "", fmt.Errorf("derive processed form: %w", err)
	}
	m.Processed = processed

	namespace := root.namespace()
	if namespace == "" {
		return "", errors.New("document root carries no namespace")
	}
	return namespace, nil
}

func (m *Message) normalizeJSON(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.New("payload is not valid json")
	}

	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("parse json document: %w", err)
	}

	processed, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("derive processed form: %w", err)
	}
	m.Processed = processed

	namespace := gjson.GetBytes(raw, `Document.\@xmlns`).String()
	if namespace == "" {
		return "", errors.New("document envelope carries no namespace")
	}
	return namespace, nil
}

type identifier struct {
	full        string
	messageType string
	variant     int
	version     int
}

// parseIdentifier splits an ISO20022 message identifier such as
// pacs.008.001.08 into its business type (pacs.008), variant and version.
func parseIdentifier(namespace string) (identifier, error) {
	id := namespace
	if strings.HasPrefix(namespace, iso20022NamespacePrefix) {
		id = strings.TrimPrefix(namespace, iso20022NamespacePrefix)
	} else if idx := strings.LastIndex(namespace, ":"); idx >= 0 {
		id = namespace[idx+1:]
	}

	parts := strings.Split(id, ".")
	if len(parts) != 4 {
		return identifier{}, fmt.Errorf("malformed message identifier %q", id)
	}

	variant, err := strconv.Atoi(parts[2])
	if err != nil {
		return identifier{}, fmt.Errorf("malformed message variant in %q", id)
	}
	version, err := strconv.Atoi(parts[3])
	if err != nil {
		return identifier{}, fmt.Errorf("malformed message version in %q", id)
	}

	return identifier{
		full:        id,
		messageType: parts[0] + "." + parts[1],
		variant:     variant,
		version:     version,
	}, nil
}

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     string
}

func parseXMLTree(raw []byte) (*xmlNode, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty document")
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple document roots")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced document")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				current := stack[len(stack)-1]
				current.text += string(bytes.TrimSpace(t))
			}
		}
	}

	if root == nil {
		return nil, errors.New("document has no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("unbalanced document")
	}
	return root, nil
}

// namespace returns the root xmlns attribute, preferring the default
// namespace declaration.
func (n *xmlNode) namespace() string {
	for _, attr := range n.attrs {
		if attr.Name.Local == "xmlns" && attr.Name.Space == "" {
			return attr.Value
		}
	}
	for _, attr := range n.attrs {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			return attr.Value
		}
	}
	return ""
}

// toValue converts the element into the processed-form encoding: attributes
// keyed as @name, text content as #text when mixed with children, and
// repeated sibling elements collapsed into arrays.
func (n *xmlNode) toValue() any {
	if len(n.attrs) == 0 && len(n.children) == 0 {
		return n.text
	}

	obj := make(map[string]any)
	for _, attr := range n.attrs {
		name := attr.Name.Local
		if attr.Name.Space == "xmlns" {
			name = "xmlns:" + attr.Name.Local
		} else if attr.Name.Space != "" {
			name = attr.Name.Space + ":" + attr.Name.Local
		}
		obj["@"+name] = attr.Value
	}

	for _, child := range n.children {
		value := child.toValue()
		existing, ok := obj[child.name]
		if !ok {
			obj[child.name] = value
			continue
		}
		if list, isList := existing.([]any); isList {
			obj[child.name] = append(list, value)
		} else {
			obj[child.name] = []any{existing, value}
		}
	}

	if n.text != "" {
		obj["#text"] = n.text
	}

	return obj
}

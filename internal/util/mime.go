package util

import (
	"mime"
	"strings"
)

// Content type tags used across the intake pipeline. Exactly one of the two
// is attached to a message after normalization.
const (
	ContentTypeXML  = "xml"
	ContentTypeJSON = "json"
)

// IsXML reports whether the supplied MIME type denotes an XML payload.
func IsXML(mimeType string) bool {
	mediaType := parseMediaType(mimeType)
	switch mediaType {
	case "application/xml", "text/xml":
		return true
	}
	return strings.HasSuffix(mediaType, "+xml")
}

// IsJSON reports whether the supplied MIME type denotes a JSON payload.
func IsJSON(mimeType string) bool {
	mediaType := parseMediaType(mimeType)
	if mediaType == "application/json" {
		return true
	}
	return strings.HasSuffix(mediaType, "+json")
}

// ContentTypeTag reduces a MIME type to the internal xml/json tag. The second
// return value is false when the MIME type denotes neither.
func ContentTypeTag(mimeType string) (string, bool) {
	switch {
	case IsXML(mimeType):
		return ContentTypeXML, true
	case IsJSON(mimeType):
		return ContentTypeJSON, true
	default:
		return "", false
	}
}

func parseMediaType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return strings.ToLower(mediaType)
}

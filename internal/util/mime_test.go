package util

import "testing"

func TestIsXML(t *testing.T) {
	cases := []struct {
		mime string
		want bool
	}{
		{"application/xml", true},
		{"text/xml", true},
		{"application/xml; charset=utf-8", true},
		{"application/soap+xml", true},
		{"APPLICATION/XML", true},
		{"application/json", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsXML(tc.mime); got != tc.want {
			t.Errorf("IsXML(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}

func TestIsJSON(t *testing.T) {
	cases := []struct {
		mime string
		want bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"application/xml", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsJSON(tc.mime); got != tc.want {
			t.Errorf("IsJSON(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}

func TestContentTypeTag(t *testing.T) {
	if tag, ok := ContentTypeTag("application/xml"); !ok || tag != ContentTypeXML {
		t.Fatalf("expected xml tag, got %q ok=%v", tag, ok)
	}
	if tag, ok := ContentTypeTag("application/json"); !ok || tag != ContentTypeJSON {
		t.Fatalf("expected json tag, got %q ok=%v", tag, ok)
	}
	if _, ok := ContentTypeTag("text/plain"); ok {
		t.Fatal("expected text/plain to be rejected")
	}
}

func TestParseUUIDv4(t *testing.T) {
	if _, err := ParseUUIDv4("0c07ee34-95c4-4d81-9414-b61d8e82c9b3"); err != nil {
		t.Fatalf("unexpected error for valid uuid v4: %v", err)
	}
	if _, err := ParseUUIDv4(""); err == nil {
		t.Fatal("expected error for empty value")
	}
	if _, err := ParseUUIDv4("not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed value")
	}
	// Version 1 UUID must be rejected.
	if _, err := ParseUUIDv4("f47ac10b-58cc-1372-a567-0e02b2c3d479"); err == nil {
		t.Fatal("expected error for non-v4 uuid")
	}
}

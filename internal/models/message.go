package models

import "fmt"

// FailureMessageType is the business type attached to outbound failure
// notifications. Payment status reports carry the pacs.002 identifier.
const FailureMessageType = "pacs.002"

// VersionKey uniquely identifies a schema definition. It is derived
// deterministically from the message content and never mutated.
type VersionKey struct {
	UniqueType string `json:"unique_type" yaml:"unique_type"`
	Major      int    `json:"version_major" yaml:"version_major"`
	Minor      int    `json:"version_minor" yaml:"version_minor"`
	Patch      int    `json:"version_patch" yaml:"version_patch"`
}

// String renders the key in its canonical lookup form.
func (k VersionKey) String() string {
	return fmt.Sprintf("%s.%d.%d.%d", k.UniqueType, k.Major, k.Minor, k.Patch)
}

// MessageDefinition links a version key to the storage locator of its schema
// document.
type MessageDefinition struct {
	Key         VersionKey `json:"key" yaml:"key"`
	StoragePath string     `json:"storage_path" yaml:"storage_path"`
}

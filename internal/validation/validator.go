// Package validation checks document keys, collection names and
// document payloads against the same size and character constraints
// the storage-engine core relies on elsewhere (key codec bounds,
// vpack document limits) before a write ever reaches a transaction.
package validation

import (
	"strings"
	"unicode"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

const (
	// MaxKeySize bounds a document's "_key" field. ArangoDB-style keys
	// are short ASCII identifiers, not arbitrary blobs.
	MaxKeySize = 254

	// MaxCollectionNameSize bounds a collection's name.
	MaxCollectionNameSize = 256

	// MaxDocumentSize bounds the encoded document payload handed to
	// Physical.Insert/Replace.
	MaxDocumentSize = 16 * 1024 * 1024 // 16 MB
)

// Validator checks keys, collection names and document payloads
// against configurable size limits.
type Validator struct {
	maxKeySize            int
	maxCollectionNameSize int
	maxDocumentSize       int
}

// NewValidator constructs a Validator using the package defaults.
func NewValidator() *Validator {
	return &Validator{
		maxKeySize:            MaxKeySize,
		maxCollectionNameSize: MaxCollectionNameSize,
		maxDocumentSize:       MaxDocumentSize,
	}
}

// NewValidatorWithLimits constructs a Validator with custom limits.
func NewValidatorWithLimits(maxKeySize, maxCollectionNameSize, maxDocumentSize int) *Validator {
	return &Validator{
		maxKeySize:            maxKeySize,
		maxCollectionNameSize: maxCollectionNameSize,
		maxDocumentSize:       maxDocumentSize,
	}
}

// ValidateWrite checks a document key and payload together, the shape
// Physical.Insert and Physical.Replace both need before opening a
// save-point.
func (v *Validator) ValidateWrite(key string, document []byte) error {
	if err := v.ValidateKey(key); err != nil {
		return err
	}
	return v.ValidateDocument(document)
}

// ValidateKey checks a document's "_key" field.
func (v *Validator) ValidateKey(key string) error {
	if key == "" {
		return storeerr.NewBadParameter("document key cannot be empty")
	}
	if len(key) > v.maxKeySize {
		return storeerr.NewBadParameter("document key exceeds maximum size")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return storeerr.NewBadParameter("document key cannot contain control characters")
		}
		if !isKeyChar(r) {
			return storeerr.NewBadParameter("document key contains a character outside [A-Za-z0-9_-:.@()+,=;$!*'%]")
		}
	}
	return nil
}

// ValidateCollectionName checks a collection's name.
func (v *Validator) ValidateCollectionName(name string) error {
	if name == "" {
		return storeerr.NewBadParameter("collection name cannot be empty")
	}
	if len(name) > v.maxCollectionNameSize {
		return storeerr.NewBadParameter("collection name exceeds maximum size")
	}
	first := rune(name[0])
	if !unicode.IsLetter(first) && first != '_' {
		return storeerr.NewBadParameter("collection name must start with a letter or underscore")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return storeerr.NewBadParameter("collection name cannot contain control characters")
		}
	}
	return nil
}

// ValidateDocument checks an encoded document payload. A nil payload
// is rejected: Remove operations carry the prior document for index
// maintenance, never an empty one.
func (v *Validator) ValidateDocument(document []byte) error {
	if len(document) == 0 {
		return storeerr.NewBadParameter("document payload cannot be empty")
	}
	if len(document) > v.maxDocumentSize {
		return storeerr.NewBadParameter("document payload exceeds maximum size")
	}
	return nil
}

func isKeyChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '_', '-', ':', '.', '@', '(', ')', '+', ',', '=', ';', '$', '!', '*', '\'', '%':
		return true
	}
	return false
}

// SanitizeKey strips characters ValidateKey would reject, for callers
// deriving a key from untrusted input (e.g. a generated document ID).
func SanitizeKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		if isKeyChar(r) {
			return r
		}
		return -1
	}, key)
	if len(sanitized) > MaxKeySize {
		sanitized = sanitized[:MaxKeySize]
	}
	return sanitized
}

// Package qr parses the payload printed on a bingo card's QR code.
// The wire format is plain text, exactly "cardId|gameId|checksum".
package qr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrKind classifies a payload validation failure.
type ErrKind string

const (
	ErrKindMalformedPayload  ErrKind = "malformed_payload"
	ErrKindInvalidIdentifier ErrKind = "invalid_identifier"
	ErrKindInvalidChecksum   ErrKind = "invalid_checksum"
)

// ParseError is a payload validation failure.
type ParseError struct {
	Kind    ErrKind
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// ChecksumLength is the fixed length of the card checksum field.
const ChecksumLength = 16

// Payload is the decoded content of a scanned card QR code. All fields are
// carried verbatim; checksum correctness is verified only by the remote
// service.
type Payload struct {
	CardID   string
	GameID   string
	Checksum string
}

// Parse validates raw and decodes it into a Payload. Validation order:
// non-empty input, exactly three |-separated fields, canonical UUID card and
// game identifiers, 16-character checksum.
func Parse(raw string) (*Payload, error) {
	if raw == "" {
		return nil, &ParseError{Kind: ErrKindMalformedPayload, Message: "invalid QR code: empty value"}
	}

	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return nil, &ParseError{Kind: ErrKindMalformedPayload, Message: "invalid QR code format: expected 3 parts separated by |"}
	}

	cardID, gameID, checksum := parts[0], parts[1], parts[2]

	if !validUUID(cardID) {
		return nil, &ParseError{Kind: ErrKindInvalidIdentifier, Message: "invalid QR code: card ID is not a valid UUID"}
	}
	if !validUUID(gameID) {
		return nil, &ParseError{Kind: ErrKindInvalidIdentifier, Message: "invalid QR code: game ID is not a valid UUID"}
	}

	if len(checksum) != ChecksumLength {
		return nil, &ParseError{Kind: ErrKindInvalidChecksum, Message: "invalid QR code: checksum must be 16 characters"}
	}

	return &Payload{CardID: cardID, GameID: gameID, Checksum: checksum}, nil
}

// Format renders a Payload back into the QR wire format.
func Format(cardID, gameID, checksum string) string {
	return fmt.Sprintf("%s|%s|%s", cardID, gameID, checksum)
}

// ValidChecksum reports whether s is 16 hexadecimal characters. This is the
// strict form of the checksum check; Parse only enforces length, the full
// checksum validation happens on the backend.
func ValidChecksum(s string) bool {
	if len(s) != ChecksumLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// validUUID accepts only the canonical 8-4-4-4-12 hyphenated textual form,
// upper or lower case. uuid.Parse alone is too lenient: it also accepts
// braced, URN-prefixed and unhyphenated forms.
func validUUID(s string) bool {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

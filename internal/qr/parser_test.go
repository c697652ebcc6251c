package qr

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const (
	testCardID   = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testGameID   = "11111111-2222-4333-8444-555555555555"
	testChecksum = "0123456789abcdef"
)

func kindOf(t *testing.T, err error) ErrKind {
	t.Helper()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	return parseErr.Kind
}

func TestParseRoundTrip(t *testing.T) {
	raw := Format(testCardID, testGameID, testChecksum)

	payload, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", raw, err)
	}
	if payload.CardID != testCardID || payload.GameID != testGameID || payload.Checksum != testChecksum {
		t.Errorf("round trip mismatch: got %+v", payload)
	}
}

func TestParseRoundTripGeneratedIDs(t *testing.T) {
	for i := 0; i < 20; i++ {
		cardID := uuid.NewString()
		gameID := uuid.NewString()

		payload, err := Parse(Format(cardID, gameID, testChecksum))
		if err != nil {
			t.Fatalf("Parse failed for generated ids: %v", err)
		}
		if payload.CardID != cardID || payload.GameID != gameID || payload.Checksum != testChecksum {
			t.Fatalf("round trip mismatch: got %+v", payload)
		}
	}
}

func TestParseUppercaseUUIDs(t *testing.T) {
	payload, err := Parse(Format(strings.ToUpper(testCardID), testGameID, testChecksum))
	if err != nil {
		t.Fatalf("Parse rejected uppercase UUID: %v", err)
	}
	// Identifiers are carried verbatim, not normalized.
	if payload.CardID != strings.ToUpper(testCardID) {
		t.Errorf("card ID was altered: %q", payload.CardID)
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse("")
	if kind := kindOf(t, err); kind != ErrKindMalformedPayload {
		t.Errorf("expected malformed payload, got %s", kind)
	}
}

func TestParseWrongFieldCount(t *testing.T) {
	for _, raw := range []string{
		testCardID,
		testCardID + "|" + testGameID,
		testCardID + "|" + testGameID + "|" + testChecksum + "|extra",
	} {
		_, err := Parse(raw)
		if kind := kindOf(t, err); kind != ErrKindMalformedPayload {
			t.Errorf("Parse(%q): expected malformed payload, got %s", raw, kind)
		}
	}
}

func TestParseInvalidIdentifiers(t *testing.T) {
	t.Run("bad card id", func(t *testing.T) {
		_, err := Parse("not-a-uuid|also-bad|short")
		if kind := kindOf(t, err); kind != ErrKindInvalidIdentifier {
			t.Errorf("expected invalid identifier, got %s", kind)
		}
	})

	t.Run("bad game id", func(t *testing.T) {
		_, err := Parse(testCardID + "|nope|" + testChecksum)
		if kind := kindOf(t, err); kind != ErrKindInvalidIdentifier {
			t.Errorf("expected invalid identifier, got %s", kind)
		}
	})

	t.Run("unhyphenated uuid rejected", func(t *testing.T) {
		flat := strings.ReplaceAll(testCardID, "-", "")
		_, err := Parse(flat + "|" + testGameID + "|" + testChecksum)
		if kind := kindOf(t, err); kind != ErrKindInvalidIdentifier {
			t.Errorf("expected invalid identifier, got %s", kind)
		}
	})
}

func TestParseChecksumLength(t *testing.T) {
	for _, checksum := range []string{"", "short", testChecksum + "0"} {
		_, err := Parse(Format(testCardID, testGameID, checksum))
		if kind := kindOf(t, err); kind != ErrKindInvalidChecksum {
			t.Errorf("checksum %q: expected invalid checksum, got %s", checksum, kind)
		}
	}
}

func TestParseDoesNotEnforceHexChecksum(t *testing.T) {
	// Parse only checks length; the strict hex check is ValidChecksum.
	payload, err := Parse(Format(testCardID, testGameID, "zzzzzzzzzzzzzzzz"))
	if err != nil {
		t.Fatalf("Parse rejected non-hex checksum of valid length: %v", err)
	}
	if payload.Checksum != "zzzzzzzzzzzzzzzz" {
		t.Errorf("checksum altered: %q", payload.Checksum)
	}
}

func TestValidChecksum(t *testing.T) {
	cases := []struct {
		checksum string
		want     bool
	}{
		{testChecksum, true},
		{strings.ToUpper(testChecksum), true},
		{"zzzzzzzzzzzzzzzz", false},
		{"0123456789abcde", false},
		{"0123456789abcdef0", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidChecksum(tc.checksum); got != tc.want {
			t.Errorf("ValidChecksum(%q) = %v, want %v", tc.checksum, got, tc.want)
		}
	}
}

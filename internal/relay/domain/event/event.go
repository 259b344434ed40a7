// Package event defines the stored shape of relay events and the tag
// classification rules used when deriving index rows from them.
//
// An event's content column holds the full serialized event document; the tag
// table is entirely derived from it and can be regenerated at any time.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is the parsed form of a stored event document.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Parse decodes a stored event document.
func Parse(content []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(content, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event document: %w", err)
	}
	return evt, nil
}

// SingleCharTagName returns the tag name as a rune when the name consists of
// exactly one character. Only single-character tag names are indexable;
// anything longer carries no query semantics and is skipped.
func SingleCharTagName(name string) (rune, bool) {
	runes := []rune(name)
	if len(runes) != 1 {
		return 0, false
	}
	return runes[0], true
}

// IsLowerHex reports whether every character of s is a lowercase hexadecimal
// digit. Uppercase digits disqualify the whole string: decoding and
// re-encoding such a value would not reproduce the original bytes.
func IsLowerHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

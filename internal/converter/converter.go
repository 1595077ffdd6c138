// Package converter implements standard Base64 (RFC 4648 section 4) text
// conversion with input validation and user-facing failure classification.
//
// Text is mapped to bytes one character per byte, so only characters in the
// range U+0000 to U+00FF can be encoded. Every operation is pure and total:
// failures are returned as Result values, never as errors or panics.
package converter

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode selects the conversion direction
type Mode string

const (
	ModeEncode Mode = "encode"
	ModeDecode Mode = "decode"
)

// ParseMode converts a user supplied mode name into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEncode:
		return ModeEncode, nil
	case ModeDecode:
		return ModeDecode, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be 'encode' or 'decode'", s)
	}
}

// Outcome reports whether a conversion succeeded
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Advisory is a non-blocking warning attached to a successful result
type Advisory string

const (
	NoAdvisory Advisory = ""
	// LooksAlreadyEncoded is raised when text being encoded is itself valid Base64
	LooksAlreadyEncoded Advisory = "looks_already_encoded"
)

// Message returns the user-facing text for the advisory
func (a Advisory) Message() string {
	if a == LooksAlreadyEncoded {
		return "The input already looks like Base64. Encoding it again produces a different string; switch to the decoder if you meant to decode it."
	}
	return ""
}

// Request is a single conversion request
type Request struct {
	Mode Mode   `json:"mode"`
	Text string `json:"text"`
}

// Result is the outcome of a conversion. Value is set on success, Category and
// Message on failure.
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Value    string   `json:"value,omitempty"`
	Category Category `json:"category,omitempty"`
	Message  string   `json:"message,omitempty"`
	Advisory Advisory `json:"advisory,omitempty"`
}

// Failed reports whether the conversion failed
func (r Result) Failed() bool {
	return r.Outcome == Failure
}

// Display returns the content of the single output slot: the failure message
// supersedes the value.
func (r Result) Display() string {
	if r.Failed() {
		return r.Message
	}
	return r.Value
}

func succeed(value string, advisory Advisory) Result {
	return Result{Outcome: Success, Value: value, Advisory: advisory}
}

func fail(category Category, message string) Result {
	return Result{Outcome: Failure, Category: category, Message: message}
}

// Convert dispatches a request to Encode or Decode
func Convert(req Request) Result {
	switch req.Mode {
	case ModeEncode:
		return Encode(req.Text)
	case ModeDecode:
		return Decode(req.Text)
	default:
		return fail(InvalidFormat, fmt.Sprintf("Unknown conversion mode %q.", req.Mode))
	}
}

// Encode returns the standard Base64 encoding of text, treating each
// character's code point as a single byte.
func Encode(text string) Result {
	raw, uc := latin1Bytes(text)
	if uc != nil {
		return fail(UnsupportedCharacter, uc.message())
	}

	advisory := NoAdvisory
	if trimmed := trim(text); trimmed != "" && IsCanonical(trimmed) {
		advisory = LooksAlreadyEncoded
	}

	return succeed(base64.StdEncoding.EncodeToString(raw), advisory)
}

// decodeString runs after the grammar check has passed. Tests replace it to
// reach the DecodeFailed path.
var decodeString = base64.StdEncoding.DecodeString

// Decode validates text against the canonical Base64 grammar and decodes it.
// Surrounding white space is ignored.
func Decode(text string) Result {
	trimmed := trim(text)
	if trimmed == "" {
		if text == "" {
			return succeed("", NoAdvisory)
		}
		return fail(EmptyInput, EmptyInput.Message())
	}

	if !IsCanonical(trimmed) {
		category := Classify(trimmed)
		if category == InvalidCharacter {
			return fail(category, invalidCharacterMessage(trimmed))
		}
		return fail(category, category.Message())
	}

	raw, err := decodeString(trimmed)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return fail(DecodeFailed, fmt.Sprintf("%s (byte offset %d)", DecodeFailed.Message(), int64(corrupt)))
		}
		return fail(DecodeFailed, DecodeFailed.Message())
	}

	return succeed(latin1String(raw), NoAdvisory)
}

// trim applies the white space policy shared by decode and the encode advisory
func trim(s string) string {
	return strings.TrimSpace(s)
}

// unsupportedCharError reports a character that does not fit in one byte
type unsupportedCharError struct {
	char     rune
	position int
}

func (e *unsupportedCharError) Error() string {
	return fmt.Sprintf("character %U at position %d exceeds the single-byte range", e.char, e.position)
}

func (e *unsupportedCharError) message() string {
	return fmt.Sprintf("Character %q (%U) at position %d cannot be encoded. This encoder maps each character to a single byte, so only characters in the range U+0000 to U+00FF (Latin-1) are supported.",
		e.char, e.char, e.position)
}

// latin1Bytes maps each character to one byte. Positions are 1-based and
// counted in characters. Invalid UTF-8 decodes to U+FFFD and is rejected.
func latin1Bytes(text string) ([]byte, *unsupportedCharError) {
	out := make([]byte, 0, utf8.RuneCountInString(text))
	position := 0
	for _, r := range text {
		position++
		if r > 0xFF {
			return nil, &unsupportedCharError{char: r, position: position}
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// latin1String maps each byte to the character with the same code point
func latin1String(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return b.String()
}

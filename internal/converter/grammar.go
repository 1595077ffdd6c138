package converter

import (
	"fmt"
	"regexp"
	"strings"
)

// canonicalPattern is the block grammar: full 4-character groups, with an
// optional final group of 2 characters + "==" or 3 characters + "=".
var canonicalPattern = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`)

// maxListedInvalidChars caps how many offending characters a message names
const maxListedInvalidChars = 5

// Category classifies a failed conversion
type Category string

const (
	EmptyInput           Category = "empty_input"
	InvalidCharacter     Category = "invalid_character"
	IncorrectPadding     Category = "incorrect_padding"
	InvalidFormat        Category = "invalid_format"
	DecodeFailed         Category = "decode_failed"
	UnsupportedCharacter Category = "unsupported_character"
)

// IsFormatError reports whether the category comes from the decode grammar pre-check
func (c Category) IsFormatError() bool {
	switch c {
	case EmptyInput, InvalidCharacter, IncorrectPadding, InvalidFormat:
		return true
	}
	return false
}

// Message returns the generic user-facing message for the category
func (c Category) Message() string {
	switch c {
	case EmptyInput:
		return "Please enter a Base64 string to decode."
	case InvalidCharacter:
		return "The input contains characters that are not valid in Base64. Please verify the string was copied correctly."
	case IncorrectPadding:
		return "The Base64 string appears to be incomplete or incorrectly padded. Its length must be a multiple of 4, ending in at most two '=' characters."
	case InvalidFormat:
		return "The input is not a valid Base64 string."
	case DecodeFailed:
		return "Failed to decode the input. Please check it and try again."
	case UnsupportedCharacter:
		return "The input contains characters outside the Latin-1 range (U+0000 to U+00FF), which this encoder cannot represent as single bytes."
	default:
		return ""
	}
}

// IsCanonical reports whether s matches the canonical Base64 grammar. The
// empty string is canonical. No trimming is applied.
func IsCanonical(s string) bool {
	return canonicalPattern.MatchString(s)
}

// Classify explains why s fails the canonical grammar. It returns an empty
// Category when s is canonical.
func Classify(s string) Category {
	if s == "" {
		return EmptyInput
	}
	if IsCanonical(s) {
		return ""
	}
	if len(invalidChars(s)) > 0 {
		return InvalidCharacter
	}

	body := strings.TrimRight(s, "=")
	if strings.Contains(body, "=") {
		// padding in the middle of the string
		return InvalidFormat
	}
	padding := len(s) - len(body)
	if len(s)%4 != 0 || padding > 2 || (padding > 0 && len(body)%4 == 0) {
		return IncorrectPadding
	}
	return InvalidFormat
}

func isAlphabet(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '+' || r == '/'
}

// invalidChars returns the distinct characters of s that are neither in the
// alphabet nor padding, in order of first appearance
func invalidChars(s string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range s {
		if isAlphabet(r) || r == '=' || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func invalidCharacterMessage(s string) string {
	chars := invalidChars(s)
	if len(chars) == 0 {
		return InvalidCharacter.Message()
	}

	listed := chars
	if len(listed) > maxListedInvalidChars {
		listed = listed[:maxListedInvalidChars]
	}
	quoted := make([]string, len(listed))
	for i, r := range listed {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	names := strings.Join(quoted, ", ")
	if extra := len(chars) - len(listed); extra > 0 {
		names = fmt.Sprintf("%s and %d more", names, extra)
	}

	return fmt.Sprintf("Invalid characters found: %s. Base64 only uses A-Z, a-z, 0-9, '+' and '/', with '=' for padding. Please verify the string was copied correctly.", names)
}

package converter

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "hello world", input: "Hello World", expected: "SGVsbG8gV29ybGQ="},
		{name: "single byte", input: "a", expected: "YQ=="},
		{name: "two bytes", input: "ab", expected: "YWI="},
		{name: "three bytes", input: "abc", expected: "YWJj"},
		{name: "latin-1 upper range", input: "é", expected: "6Q=="},
		{name: "control characters", input: "\x00\x01\u00ff", expected: "AAH/"},
		{name: "keeps surrounding white space", input: " a ", expected: "IGEg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Encode(tt.input)
			require.False(t, result.Failed(), "unexpected failure: %s", result.Message)
			assert.Equal(t, Success, result.Outcome)
			assert.Equal(t, tt.expected, result.Value)
			assert.Empty(t, result.Category)
		})
	}
}

func TestEncode_UnsupportedCharacter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{name: "cjk", input: "日", contains: "U+65E5"},
		{name: "emoji after text", input: "ok 🙂", contains: "position 4"},
		{name: "invalid utf-8", input: "a\xc3", contains: "U+FFFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result Result
			require.NotPanics(t, func() { result = Encode(tt.input) })
			assert.Equal(t, Failure, result.Outcome)
			assert.Equal(t, UnsupportedCharacter, result.Category)
			assert.Empty(t, result.Value)
			assert.Contains(t, result.Message, tt.contains)
			assert.Contains(t, result.Message, "single byte")
		})
	}
}

func TestEncode_Advisory(t *testing.T) {
	t.Run("already encoded input raises advisory", func(t *testing.T) {
		result := Encode("SGVsbG8gV29ybGQ=")
		require.False(t, result.Failed())
		assert.Equal(t, LooksAlreadyEncoded, result.Advisory)
		assert.Equal(t, "U0dWc2JHOGdWMjl5YkdRPQ==", result.Value)
		assert.NotEmpty(t, result.Advisory.Message())
	})

	t.Run("advisory uses decode trimming policy", func(t *testing.T) {
		result := Encode("  YQ==\n")
		require.False(t, result.Failed())
		assert.Equal(t, LooksAlreadyEncoded, result.Advisory)
	})

	t.Run("plain text has no advisory", func(t *testing.T) {
		result := Encode("Hello World")
		assert.Equal(t, NoAdvisory, result.Advisory)
	})

	t.Run("empty input has no advisory", func(t *testing.T) {
		assert.Equal(t, NoAdvisory, Encode("").Advisory)
		assert.Equal(t, NoAdvisory, Encode("   ").Advisory)
	})
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "hello world", input: "SGVsbG8gV29ybGQ=", expected: "Hello World"},
		{name: "single padded byte", input: "YQ==", expected: "a"},
		{name: "no padding needed", input: "YWJj", expected: "abc"},
		{name: "surrounding white space", input: "\t SGVsbG8gV29ybGQ= \n", expected: "Hello World"},
		{name: "latin-1 bytes", input: "AAH/", expected: "\x00\x01ÿ"},
		{name: "non-zero trailing bits", input: "YR==", expected: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Decode(tt.input)
			require.False(t, result.Failed(), "unexpected failure: %s", result.Message)
			assert.Equal(t, tt.expected, result.Value)
			assert.Equal(t, NoAdvisory, result.Advisory)
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category Category
	}{
		{name: "missing padding", input: "SGVsbG8gV29ybGQ", category: IncorrectPadding},
		{name: "invalid characters", input: "!!!!", category: InvalidCharacter},
		{name: "white space only", input: "   ", category: EmptyInput},
		{name: "too much padding", input: "Y===", category: IncorrectPadding},
		{name: "four padding characters", input: "YWJj====", category: IncorrectPadding},
		{name: "padding in the middle", input: "YQ=a", category: InvalidFormat},
		{name: "concatenated blocks", input: "YQ==YQ==", category: InvalidFormat},
		{name: "url-safe alphabet", input: "-_-_", category: InvalidCharacter},
		{name: "inner white space", input: "SGVs bG8=", category: InvalidCharacter},
		{name: "non-ascii", input: "日本", category: InvalidCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result Result
			require.NotPanics(t, func() { result = Decode(tt.input) })
			assert.Equal(t, Failure, result.Outcome)
			assert.Equal(t, tt.category, result.Category)
			assert.True(t, result.Category.IsFormatError())
			assert.NotEmpty(t, result.Message)
			assert.Empty(t, result.Value)
			assert.Equal(t, result.Message, result.Display())
		})
	}
}

func TestDecode_InvalidCharacterMessage(t *testing.T) {
	result := Decode("ab!c?d!!")
	require.Equal(t, InvalidCharacter, result.Category)
	assert.Contains(t, result.Message, `'!'`)
	assert.Contains(t, result.Message, `'?'`)
	assert.Equal(t, 1, strings.Count(result.Message, `'!'`), "characters should be listed once")
	assert.Contains(t, result.Message, "copied correctly")

	many := Decode("!@#$%^&*")
	assert.Contains(t, many.Message, "and 3 more")
}

func TestDecode_Idempotent(t *testing.T) {
	inputs := []string{"", "SGVsbG8gV29ybGQ=", "SGVsbG8gV29ybGQ", "!!!!", "  ", "YQ=a"}
	for _, input := range inputs {
		assert.Equal(t, Decode(input), Decode(input), "input %q", input)
	}
}

func TestRoundTrip(t *testing.T) {
	var all strings.Builder
	for r := rune(0); r <= 0xFF; r++ {
		all.WriteRune(r)
	}

	random := make([]byte, 64)
	_, err := rand.Read(random)
	require.NoError(t, err)
	t.Logf("random bytes for test: %x", random)

	inputs := []string{
		"",
		"Hello World",
		"a",
		"ab",
		"abc",
		"café au lait",
		all.String(),
		latin1String(random),
	}

	for _, input := range inputs {
		encoded := Encode(input)
		require.False(t, encoded.Failed(), "encode failed for %q: %s", input, encoded.Message)

		decoded := Decode(encoded.Value)
		require.False(t, decoded.Failed(), "decode failed for %q: %s", encoded.Value, decoded.Message)
		assert.Equal(t, input, decoded.Value)
	}
}

func TestConvert(t *testing.T) {
	assert.Equal(t, "SGVsbG8gV29ybGQ=", Convert(Request{Mode: ModeEncode, Text: "Hello World"}).Value)
	assert.Equal(t, "Hello World", Convert(Request{Mode: ModeDecode, Text: "SGVsbG8gV29ybGQ="}).Value)

	unknown := Convert(Request{Mode: "rot13", Text: "abc"})
	assert.True(t, unknown.Failed())
	assert.Equal(t, InvalidFormat, unknown.Category)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Encode ")
	require.NoError(t, err)
	assert.Equal(t, ModeEncode, mode)

	mode, err = ParseMode("decode")
	require.NoError(t, err)
	assert.Equal(t, ModeDecode, mode)

	_, err = ParseMode("encrypt")
	assert.Error(t, err)
}

func TestResult_Display(t *testing.T) {
	assert.Equal(t, "YQ==", Encode("a").Display())
	assert.Equal(t, IncorrectPadding.Message(), Decode("YQ=").Display())
}

func TestDecode_DecodeFailed(t *testing.T) {
	original := decodeString
	t.Cleanup(func() { decodeString = original })

	decodeString = func(string) ([]byte, error) { return nil, base64.CorruptInputError(3) }
	result := Decode("YQ==")
	require.True(t, result.Failed())
	assert.Equal(t, DecodeFailed, result.Category)
	assert.Contains(t, result.Message, DecodeFailed.Message())
	assert.Contains(t, result.Message, "byte offset 3")
	assert.Empty(t, result.Value)

	decodeString = func(string) ([]byte, error) { return nil, errors.New("boom") }
	result = Decode("YQ==")
	require.True(t, result.Failed())
	assert.Equal(t, DecodeFailed, result.Category)
	assert.Equal(t, DecodeFailed.Message(), result.Message)
}

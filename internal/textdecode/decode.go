// Package textdecode turns raw file bytes into display text. It tries UTF-8
// first and falls back to code page 949 when UTF-8 decoding produces a
// replacement character. Decoding never fails; it only degrades.
package textdecode

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names the encoding a byte sequence was decoded with.
type Encoding string

// Supported encodings.
const (
	UTF8  Encoding = "utf-8"
	CP949 Encoding = "cp949"
)

// ReplacementChar is the marker a decoder emits for invalid input.
const ReplacementChar = '\uFFFD'

// Decode returns the text of b. See DecodeWith for the encoding used.
func Decode(b []byte) string {
	s, _ := DecodeWith(b)
	return s
}

// DecodeWith decodes b and reports which encoding produced the result.
// If the CP949 pass also contains invalid sequences the (possibly corrupted)
// CP949 text is returned as is.
func DecodeWith(b []byte) (string, Encoding) {
	if Detect(b) == UTF8 {
		return DecodeUTF8(b), UTF8
	}

	legacy, err := korean.EUCKR.NewDecoder().Bytes(b)
	if err != nil {
		return DecodeUTF8(b), UTF8
	}

	return string(legacy), CP949
}

// DecodeUTF8 decodes b as UTF-8 only, stripping a leading byte order mark
// and replacing invalid sequences with ReplacementChar.
func DecodeUTF8(b []byte) string {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(ReplacementChar))
	}

	return string(out)
}

// Detect reports which encoding b is decoded with: UTF-8 when it decodes
// without a replacement character, CP949 otherwise.
func Detect(b []byte) Encoding {
	if utf8.Valid(b) && !bytes.ContainsRune(b, ReplacementChar) {
		return UTF8
	}

	return CP949
}

// Document is a decoded file.
type Document struct {
	Text     string
	Encoding Encoding
	// Size is the file size in bytes, before decoding.
	Size int64
}

// ReadDocument reads path and decodes it.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return Document{}, fmt.Errorf("reading %q: %w", path, err)
	}

	text, enc := DecodeWith(data)

	return Document{Text: text, Encoding: enc, Size: int64(len(data))}, nil
}

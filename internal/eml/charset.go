package eml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	errInvalidUTF8  = errors.New("bytes are not valid UTF-8")
	errInvalidASCII = errors.New("bytes are not valid US-ASCII")
)

// normalizeCharset lower-cases a charset label and strips quoting
func normalizeCharset(label string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'`))
}

// lookupEncoding resolves a charset label via the WHATWG index first, then IANA MIME names
func lookupEncoding(label string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.MIME.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc, nil
}

// decodeCharset converts b from the given charset to UTF-8.
// UTF-8 and US-ASCII are validated strictly instead of being repaired.
func decodeCharset(label string, b []byte) (string, error) {
	switch normalizeCharset(label) {
	case "", "utf-8", "utf8":
		if !utf8.Valid(b) {
			return "", errInvalidUTF8
		}
		return string(b), nil
	case "us-ascii", "ascii":
		for _, c := range b {
			if c >= utf8.RuneSelf {
				return "", errInvalidASCII
			}
		}
		return string(b), nil
	}

	enc, err := lookupEncoding(normalizeCharset(label))
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// charsetReader adapts decodeCharset to mime.WordDecoder
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	s, err := decodeCharset(label, b)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader([]byte(s)), nil
}

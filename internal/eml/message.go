// Package eml parses RFC 5322 messages and exposes the fields used for classification.
package eml

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/mikey/phishing-detector/internal/core"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// Message is a parsed message. Only the header is held in decoded form;
// the body is re-read from the raw bytes on every call to Body.
type Message struct {
	raw    []byte
	header message.Header
}

// Parse reads the header block of raw and validates the message structure.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &core.MalformedMessageError{Err: errors.New("empty input")}
	}

	h, err := readHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, &core.MalformedMessageError{Err: err}
	}

	return &Message{raw: raw, header: message.Header{Header: h}}, nil
}

// readHeader accepts a header block terminated either by a blank line or by end of input
func readHeader(br *bufio.Reader) (textproto.Header, error) {
	h, err := textproto.ReadHeader(br)
	if errors.Is(err, io.EOF) && h.Len() > 0 {
		err = nil
	}
	if err != nil {
		return h, err
	}
	if h.Len() == 0 {
		return h, errors.New("no header fields")
	}
	return h, nil
}

// headerText returns the decoded value of k and whether the field is present
func (m *Message) headerText(k string) (string, bool) {
	if !m.header.Has(k) {
		return "", false
	}
	v := m.header.Get(k)
	if dec, err := wordDecoder.DecodeHeader(v); err == nil {
		v = dec
	}
	return v, true
}

// Sender returns the From header
func (m *Message) Sender() (string, bool) {
	return m.headerText("From")
}

// Recipient returns the To header, failing when it is absent
func (m *Message) Recipient() (string, error) {
	v, ok := m.headerText("To")
	if !ok {
		return "", &core.MissingFieldError{Field: "To"}
	}
	return v, nil
}

// Subject returns the Subject header, failing when it is absent
func (m *Message) Subject() (string, error) {
	v, ok := m.headerText("Subject")
	if !ok {
		return "", &core.MissingFieldError{Field: "Subject"}
	}
	return v, nil
}

// Date returns the Date header
func (m *Message) Date() (string, bool) {
	return m.headerText("Date")
}

// Body returns the decoded text body.
//
// Multipart messages yield the first text/plain part in depth-first order,
// or core.ErrNoTextBody when there is none. Single-part messages are decoded
// whatever their declared type.
func (m *Message) Body() (string, error) {
	br := bufio.NewReader(bytes.NewReader(m.raw))
	h, err := readHeader(br)
	if err != nil {
		return "", &core.MalformedMessageError{Err: err}
	}
	// unknown charset and encoding errors are resolved per part in decodeEntity
	entity, _ := message.New(message.Header{Header: h}, br)

	if mr := entity.MultipartReader(); mr != nil {
		part, err := firstTextPart(mr, defaultPartType(entity))
		if err != nil {
			return "", err
		}
		return decodeEntity(part)
	}

	return decodeEntity(entity)
}

// firstTextPart walks the multipart tree depth-first and returns the first text/plain leaf.
// The returned entity's body must be consumed before the reader advances.
func firstTextPart(mr message.MultipartReader, defaultType string) (*message.Entity, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, core.ErrNoTextBody
		}
		if part == nil {
			return nil, &core.MalformedMessageError{Err: fmt.Errorf("reading multipart: %w", err)}
		}

		if child := part.MultipartReader(); child != nil {
			found, err := firstTextPart(child, defaultPartType(part))
			if errors.Is(err, core.ErrNoTextBody) {
				continue
			}
			return found, err
		}

		if mediaType(part, defaultType) == "text/plain" {
			return part, nil
		}
	}
}

// defaultPartType is the implicit type of the children of a multipart entity.
// RFC 2046 5.1.5: parts of a multipart/digest default to message/rfc822.
func defaultPartType(parent *message.Entity) string {
	if mediaType(parent, "") == "multipart/digest" {
		return "message/rfc822"
	}
	return "text/plain"
}

// mediaType returns the lower-cased media type, or defaultType when the header is missing or unparsable
func mediaType(e *message.Entity, defaultType string) string {
	t, _, err := e.Header.ContentType()
	if err != nil || t == "" {
		return defaultType
	}
	return strings.ToLower(t)
}

// decodeEntity reads the transfer-decoded body and converts it from its declared charset
func decodeEntity(e *message.Entity) (string, error) {
	_, params, _ := e.Header.ContentType()
	charset := params["charset"]

	cte := strings.ToLower(strings.TrimSpace(e.Header.Get("Content-Transfer-Encoding")))
	switch cte {
	case "", "7bit", "8bit", "binary", "quoted-printable", "base64":
	default:
		return "", &core.BodyDecodeError{Err: fmt.Errorf("unknown transfer encoding %q", cte)}
	}

	b, err := io.ReadAll(e.Body)
	if err != nil {
		return "", &core.BodyDecodeError{Charset: charset, Err: err}
	}

	s, err := decodeCharset(charset, b)
	if err != nil {
		return "", &core.BodyDecodeError{Charset: charset, Err: err}
	}
	return s, nil
}

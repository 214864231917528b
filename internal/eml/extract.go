package eml

import (
	"errors"

	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// Extractor implements core.MessageExtractor on top of Parse
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract parses raw and reads every field needed for classification.
// A message without a text/plain part yields fields with a nil Body.
func (x *Extractor) Extract(raw []byte) (*core.ExtractedFields, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	recipient, err := msg.Recipient()
	if err != nil {
		return nil, err
	}
	subject, err := msg.Subject()
	if err != nil {
		return nil, err
	}

	fields := &core.ExtractedFields{
		Recipient: recipient,
		Subject:   subject,
	}
	if sender, ok := msg.Sender(); ok {
		fields.Sender = &sender
	}
	if date, ok := msg.Date(); ok {
		fields.Date = &date
	}

	body, err := msg.Body()
	switch {
	case errors.Is(err, core.ErrNoTextBody):
		x.logger.Debug("Message has no text/plain part", zap.String("subject", subject))
	case err != nil:
		return nil, err
	default:
		fields.Body = &body
	}

	return fields, nil
}

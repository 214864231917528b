package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/phishing-detector/internal/utils"
	"go.uber.org/zap"
)

const promptFormat = "sender: %s\nrecipient: %s\nsubject: %s\nbody: %s\n"

// GatewayConfig holds the per-call limits applied by the gateway
type GatewayConfig struct {
	Timeout     time.Duration
	MaxBodySize int
}

// ClassificationGateway builds prompts, calls the completion service and validates its reply
type ClassificationGateway struct {
	client        CompletionClient
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	timeout       time.Duration
	maxBodySize   int
}

// NewClassificationGateway creates a new classification gateway
func NewClassificationGateway(
	client CompletionClient,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	cfg GatewayConfig,
) *ClassificationGateway {
	return &ClassificationGateway{
		client:        client,
		logger:        logger,
		textProcessor: textProcessor,
		timeout:       cfg.Timeout,
		maxBodySize:   cfg.MaxBodySize,
	}
}

// BuildPrompt renders the fields as labeled lines in a fixed order.
// Absent optional values render as the empty string.
func (g *ClassificationGateway) BuildPrompt(fields *ExtractedFields) string {
	body := StringValue(fields.Body)
	if g.textProcessor != nil {
		body = g.textProcessor.TruncateText(body, g.maxBodySize)
	}
	return fmt.Sprintf(promptFormat,
		StringValue(fields.Sender),
		fields.Recipient,
		fields.Subject,
		body,
	)
}

// PromptKey returns the cache key for a prompt
func PromptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Classify sends the prompt built from fields and parses the reply into a verdict
func (g *ClassificationGateway) Classify(ctx context.Context, fields *ExtractedFields) (*Verdict, error) {
	return g.ClassifyPrompt(ctx, g.BuildPrompt(fields))
}

// ClassifyPrompt performs exactly one completion call for an already built prompt
func (g *ClassificationGateway) ClassifyPrompt(ctx context.Context, prompt string) (*Verdict, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := g.client.Complete(ctx, prompt)
	if err != nil {
		g.logger.Error("Completion request failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return nil, &GatewayError{Op: "request", Err: err}
	}

	verdict, err := ParseVerdict(content)
	if err != nil {
		g.logger.Warn("Unusable completion reply",
			zap.Error(err),
			zap.Int("reply_size", len(content)))
		return nil, err
	}

	g.logger.Debug("Completion reply parsed",
		zap.Bool("is_suspicious", verdict.IsSuspicious),
		zap.Duration("elapsed", time.Since(start)))

	return verdict, nil
}

type verdictReply struct {
	Spam    *bool   `json:"spam"`
	Details *string `json:"details"`
}

// ParseVerdict decodes a reply of the form {"spam": bool, "details": string}
func ParseVerdict(content string) (*Verdict, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &GatewayError{Op: "reply", Err: errors.New("empty reply")}
	}

	var reply verdictReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, &GatewayError{Op: "reply", Err: fmt.Errorf("reply is not a JSON object: %w", err)}
	}
	if reply.Spam == nil {
		return nil, &GatewayError{Op: "reply", Err: errors.New(`reply is missing boolean field "spam"`)}
	}
	if reply.Details == nil {
		return nil, &GatewayError{Op: "reply", Err: errors.New(`reply is missing text field "details"`)}
	}

	return &Verdict{
		IsSuspicious: *reply.Spam,
		Explanation:  *reply.Details,
	}, nil
}

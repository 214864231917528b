package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
	"go.uber.org/zap"
)

const maxReasonHeaderLen = 900

// SMTPConfig holds the SMTP intake settings
type SMTPConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	BlockSuspicious bool
	StatusHeader    string
	ReasonHeader    string
	RelayEnabled    bool
	RelayAddress    string
	AnalysisTimeout time.Duration
}

// SMTPIntake is a content filter: it accepts mail, analyzes it, then rejects,
// or tags and relays it to the next hop
type SMTPIntake struct {
	analyzer      ports.Analyzer
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	cfg           SMTPConfig
	server        *smtp.Server
	listener      net.Listener
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(analyzer ports.Analyzer, logger *zap.Logger, textProcessor *utils.TextProcessor, cfg SMTPConfig) *SMTPIntake {
	if cfg.StatusHeader == "" {
		cfg.StatusHeader = "X-Phishing-Status"
	}
	if cfg.ReasonHeader == "" {
		cfg.ReasonHeader = "X-Phishing-Reason"
	}
	return &SMTPIntake{
		analyzer:      analyzer,
		logger:        logger,
		textProcessor: textProcessor,
		cfg:           cfg,
	}
}

// Start binds the listen address and serves in the background
func (f *SMTPIntake) Start() error {
	f.server = smtp.NewServer(&smtpBackend{intake: f})
	f.server.Domain = f.cfg.Domain
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = f.cfg.MaxMessageBytes
	f.server.MaxRecipients = 50

	l, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}
	f.listener = l

	f.logger.Info("SMTP intake starting", zap.String("address", l.Addr().String()))
	go func() {
		if err := f.server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (f *SMTPIntake) Addr() string {
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Stop stops the SMTP server
func (f *SMTPIntake) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// process analyzes one message and decides what to do with it
func (f *SMTPIntake) process(sender string, recipients []string, raw []byte) error {
	ctx := context.Background()
	if f.cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.AnalysisTimeout)
		defer cancel()
	}

	result, err := f.analyzer.Analyze(ctx, raw)
	if err != nil {
		var gatewayErr *core.GatewayError
		if errors.As(err, &gatewayErr) {
			f.logger.Warn("Deferring message, classification unavailable",
				zap.String("from", sender), zap.Error(err))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Classification temporarily unavailable, try again later",
			}
		}
		f.logger.Info("Rejecting unparsable message", zap.String("from", sender), zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Message rejected: " + f.textProcessor.HeaderValue(errorMessage(err), 200),
		}
	}

	verdict := result.Verdict
	if verdict.IsSuspicious && f.cfg.BlockSuspicious {
		f.logger.Info("Rejecting suspicious message",
			zap.String("from", sender),
			zap.String("subject", result.Fields.Subject),
			zap.String("reason", verdict.Explanation))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      "Rejected as suspected phishing",
		}
	}

	tagged := f.tag(raw, verdict)

	if f.cfg.RelayEnabled {
		if err := f.relay(sender, recipients, tagged); err != nil {
			f.logger.Error("Failed to relay message", zap.Error(err), zap.String("from", sender))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 4, 0},
				Message:      "Relay to next hop failed",
			}
		}
	} else {
		f.logger.Warn("Relay disabled, message accepted and dropped")
	}

	f.logger.Info("Processed message",
		zap.String("from", sender),
		zap.Int("recipients", len(recipients)),
		zap.Bool("is_suspicious", verdict.IsSuspicious),
		zap.Bool("cached", result.Cached))
	return nil
}

// tag prepends the verdict headers, leaving the original message untouched
func (f *SMTPIntake) tag(raw []byte, verdict *core.Verdict) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %s\r\n", f.cfg.StatusHeader, strconv.FormatBool(verdict.IsSuspicious))
	fmt.Fprintf(&b, "%s: %s\r\n", f.cfg.ReasonHeader, f.textProcessor.HeaderValue(verdict.Explanation, maxReasonHeaderLen))
	b.Write(raw)
	return b.Bytes()
}

// relay sends the tagged message to the next hop
func (f *SMTPIntake) relay(sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", f.cfg.RelayAddress, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to next hop: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{intake: b.intake}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake     *SMTPIntake
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the whole message and hands it to the intake
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.intake.process(s.sender, s.recipients, raw)
}

func (s *smtpSession) Logout() error {
	return nil
}

package intake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/ports"
	"go.uber.org/zap"
)

const (
	uploadField = "email_file"

	msgNoFile     = "No email file provided"
	msgInvalidEML = "File is not a valid .eml."
)

// HTTPConfig holds the HTTP intake settings
type HTTPConfig struct {
	ListenAddress  string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	HistoryLimit   int
}

// HTTPIntake serves the upload and history API
type HTTPIntake struct {
	analyzer ports.Analyzer
	logger   *zap.Logger
	cfg      HTTPConfig
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

type analysisResponse struct {
	Sender       *string `json:"sender"`
	Subject      string  `json:"subject"`
	Recipient    string  `json:"recipient"`
	Date         *string `json:"date"`
	Body         *string `json:"body"`
	IsSuspicious bool    `json:"is_suspicious"`
	Analysis     string  `json:"analysis"`
}

type recordResponse struct {
	ID           int64     `json:"id"`
	Sender       string    `json:"sender"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	IsSuspicious bool      `json:"is_suspicious"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewHTTPIntake creates the HTTP intake and its router
func NewHTTPIntake(analyzer ports.Analyzer, logger *zap.Logger, cfg HTTPConfig) *HTTPIntake {
	h := &HTTPIntake{
		analyzer: analyzer,
		logger:   logger,
		cfg:      cfg,
	}

	engine := gin.New()
	engine.Use(logging.GinLogger(logger), logging.GinRecovery(logger))
	if cfg.MaxUploadBytes > 0 {
		engine.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	engine.GET("/healthz", h.health)
	api := engine.Group("/api/analysis")
	api.POST("/analyze_email/", h.analyzeEmail)
	api.GET("/", h.history)

	h.engine = engine
	return h
}

// Handler returns the router
func (h *HTTPIntake) Handler() http.Handler {
	return h.engine
}

// Start binds the listen address and serves in the background
func (h *HTTPIntake) Start() error {
	l, err := net.Listen("tcp", h.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.cfg.ListenAddress, err)
	}
	h.listener = l
	h.server = &http.Server{
		Handler:      h.engine,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
	}

	h.logger.Info("HTTP intake starting", zap.String("address", l.Addr().String()))
	go func() {
		if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (h *HTTPIntake) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop gracefully shuts the server down
func (h *HTTPIntake) Stop() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func (h *HTTPIntake) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPIntake) analyzeEmail(c *gin.Context) {
	if h.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	}

	file, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, fmt.Sprintf("Uploaded file exceeds %d bytes", tooLarge.Limit), err)
			return
		}
		h.fail(c, msgNoFile, err)
		return
	}

	raw, err := h.spool(c, file.Filename, func(path string) error {
		return c.SaveUploadedFile(file, path)
	})
	if err != nil {
		h.fail(c, err.Error(), err)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, errorMessage(err), err)
		return
	}

	c.JSON(http.StatusOK, analysisResponse{
		Sender:       result.Fields.Sender,
		Subject:      result.Fields.Subject,
		Recipient:    result.Fields.Recipient,
		Date:         result.Fields.Date,
		Body:         result.Fields.Body,
		IsSuspicious: result.Verdict.IsSuspicious,
		Analysis:     result.Verdict.Explanation,
	})
}

// spool writes the upload to a temporary file, reads it back and removes it
func (h *HTTPIntake) spool(c *gin.Context, name string, save func(path string) error) ([]byte, error) {
	tmp, err := os.CreateTemp("", "upload-*.eml")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("Failed to remove temporary file", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := save(path); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	h.logger.Debug("Spooled upload",
		zap.String("filename", name),
		zap.Int("size", len(raw)),
		zap.String("client_ip", c.ClientIP()))
	return raw, nil
}

func (h *HTTPIntake) history(c *gin.Context) {
	limit := h.cfg.HistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.fail(c, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	records, err := h.analyzer.History(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, core.ErrHistoryDisabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{
			ID:           r.ID,
			Sender:       r.Sender,
			Subject:      r.Subject,
			Body:         r.Body,
			IsSuspicious: r.IsSuspicious,
			CreatedAt:    r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPIntake) fail(c *gin.Context, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// errorMessage renders an analysis failure for the client
func errorMessage(err error) string {
	var decodeErr *core.BodyDecodeError
	if errors.As(err, &decodeErr) {
		return msgInvalidEML
	}
	return err.Error()
}

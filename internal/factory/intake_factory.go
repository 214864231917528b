package factory

import (
	"time"

	"github.com/mikey/phishing-detector/internal/adapters/intake"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
	"go.uber.org/zap"
)

// IntakeFactory creates the listeners that feed the analyzer
type IntakeFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	analyzer      ports.Analyzer
	textProcessor *utils.TextProcessor
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(cfg *config.Config, logger *zap.Logger, analyzer ports.Analyzer, textProcessor *utils.TextProcessor) *IntakeFactory {
	return &IntakeFactory{
		cfg:           cfg,
		logger:        logger,
		analyzer:      analyzer,
		textProcessor: textProcessor,
	}
}

// CreateIntakes returns the HTTP intake, plus the SMTP intake when enabled
func (f *IntakeFactory) CreateIntakes() []ports.Intake {
	serverCfg := f.cfg.GetServer()
	intakes := []ports.Intake{
		intake.NewHTTPIntake(f.analyzer, f.logger.Named("http"), intake.HTTPConfig{
			ListenAddress:  serverCfg.ListenAddress,
			MaxUploadBytes: serverCfg.MaxUploadBytes,
			ReadTimeout:    serverCfg.ReadTimeout,
			WriteTimeout:   serverCfg.WriteTimeout,
			HistoryLimit:   serverCfg.HistoryLimit,
		}),
	}

	smtpCfg := f.cfg.GetSMTP()
	if smtpCfg.Enabled {
		intakes = append(intakes, intake.NewSMTPIntake(f.analyzer, f.logger.Named("smtp"), f.textProcessor, intake.SMTPConfig{
			ListenAddress:   smtpCfg.ListenAddress,
			Domain:          smtpCfg.Domain,
			MaxMessageBytes: smtpCfg.MaxMessageBytes,
			BlockSuspicious: smtpCfg.BlockSuspicious,
			StatusHeader:    smtpCfg.StatusHeader,
			ReasonHeader:    smtpCfg.ReasonHeader,
			RelayEnabled:    smtpCfg.RelayEnabled,
			RelayAddress:    smtpCfg.RelayAddress,
			// leave room for the completion call inside the session timeouts
			AnalysisTimeout: f.cfg.GetLLM().Timeout + 5*time.Second,
		}))
	}

	return intakes
}

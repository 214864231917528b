package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type output struct {
	Sender       *string `json:"sender"`
	Subject      string  `json:"subject"`
	Recipient    string  `json:"recipient"`
	Date         *string `json:"date"`
	Body         *string `json:"body"`
	IsSuspicious bool    `json:"is_suspicious"`
	Analysis     string  `json:"analysis"`
}

func main() {
	flags := &di.CLIFlags{}

	rootCmd := &cobra.Command{
		Use:           "eml-analyze [file]",
		Short:         "Analyze one .eml message and print the verdict as JSON",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			container, err := di.BuildCLIContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			return container.Invoke(func(logger *zap.Logger, service *core.AnalysisService, client core.CompletionClient) error {
				defer logger.Sync()
				if closer, ok := client.(interface{ Close() error }); ok {
					defer closer.Close()
				}

				result, err := service.Analyze(context.Background(), raw)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(output{
					Sender:       result.Fields.Sender,
					Subject:      result.Fields.Subject,
					Recipient:    result.Fields.Recipient,
					Date:         result.Fields.Date,
					Body:         result.Fields.Body,
					IsSuspicious: result.Verdict.IsSuspicious,
					Analysis:     result.Verdict.Explanation,
				})
			})
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&flags.Provider, "provider", "p", "", "completion provider (mistral, openai, gemini, bedrock)")
	f.StringVarP(&flags.Model, "model", "m", "", "model name or Bedrock model id")
	f.StringVar(&flags.APIKey, "api-key", "", "API key for the selected provider")
	f.StringVar(&flags.AgentID, "agent-id", "", "Mistral agent id")
	f.StringVar(&flags.BaseURL, "base-url", "", "API base URL for Mistral or OpenAI-compatible endpoints")
	f.StringVarP(&flags.ConfigFile, "config", "c", "", "path to config file")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose logging")
	f.BoolVar(&flags.JSONLog, "json-log", false, "output logs in JSON format")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return raw, nil
}

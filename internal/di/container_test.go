package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey/phishing-detector/internal/adapters/store"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const message = "From: billing@examp1e.com\r\nTo: you@example.com\r\nSubject: Invoice overdue\r\n\r\nPay now.\r\n"

func TestCLIContainerAnalyzesThroughMistral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/agents/completions", r.URL.Path)
		assert.Equal(t, "Bearer mk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"spam\": true, \"details\": \"urgent payment demand\"}"}}]}`))
	}))
	defer srv.Close()

	container, err := BuildCLIContainer(&CLIFlags{
		Provider: "mistral",
		APIKey:   "mk-test",
		AgentID:  "ag:test",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	err = container.Invoke(func(s *core.AnalysisService, cache factory.StoppableCache, repo store.Repository) {
		assert.Nil(t, cache)
		_, isDiscard := repo.(*store.DiscardRepository)
		assert.True(t, isDiscard)

		result, err := s.Analyze(context.Background(), []byte(message))
		require.NoError(t, err)
		assert.True(t, result.Verdict.IsSuspicious)
		assert.Equal(t, "urgent payment demand", result.Verdict.Explanation)
		assert.Equal(t, "Invoice overdue", result.Fields.Subject)
	})
	require.NoError(t, err)
}

func TestCLIContainerRejectsMissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	container, err := BuildCLIContainer(&CLIFlags{Provider: "openai"})
	require.NoError(t, err)

	err = container.Invoke(func(s *core.AnalysisService) {})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "openai.api_key is required"), err.Error())
}

func TestApplyFlags(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	applyFlags(cfg, &CLIFlags{Provider: "openai", Model: "gpt-4o", APIKey: "sk", BaseURL: "http://llm.local/v1"})

	assert.Equal(t, "openai", cfg.GetLLM().Provider)
	assert.Equal(t, "gpt-4o", cfg.GetOpenAI().ModelName)
	assert.Equal(t, "sk", cfg.GetOpenAI().APIKey)
	assert.Equal(t, "http://llm.local/v1", cfg.GetOpenAI().BaseURL)

	cfg = config.NewFromViper(config.NewEmptyViper())
	applyFlags(cfg, &CLIFlags{Provider: "bedrock", Model: "amazon.titan-text-express-v1"})
	assert.Equal(t, "amazon.titan-text-express-v1", cfg.GetBedrock().ModelID)
}

package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikey/phishing-detector/internal/adapters/store"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/eml"
	"github.com/mikey/phishing-detector/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const phishingMessage = "Date: Tue, 18 Mar 2025 10:15:00 +0000\n" +
	"Subject: Your account has been limited\n" +
	"To: victim@example.com\n" +
	"From: \"PayPal Support\" <support@paypa1-secure.com>\n" +
	"Content-Type: text/plain; charset=us-ascii\n" +
	"\n" +
	"Please verify your account at http://paypa1-secure.com/login\n"

type stubClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubClient) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func newService(client core.CompletionClient, repo core.AnalysisRepository) *core.AnalysisService {
	logger := zap.NewNop()
	gateway := core.NewClassificationGateway(client, logger, utils.NewTextProcessor(logger), core.GatewayConfig{})
	return core.NewAnalysisService(eml.NewExtractor(logger), gateway, nil, repo, logger, core.ServiceConfig{})
}

func newTestHTTPIntake(client core.CompletionClient, repo core.AnalysisRepository) *HTTPIntake {
	gin.SetMode(gin.TestMode)
	return NewHTTPIntake(newService(client, repo), zap.NewNop(), HTTPConfig{
		MaxUploadBytes: 1 << 20,
		HistoryLimit:   50,
	})
}

func upload(t *testing.T, h *HTTPIntake, field string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "message.eml")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "nothing attached"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analysis/analyze_email/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["error"]
}

func TestAnalyzeEmailSuccess(t *testing.T) {
	client := &stubClient{reply: `{"spam": true, "details": "suspicious domain"}`}
	h := newTestHTTPIntake(client, store.NewMemoryRepository())

	rec := upload(t, h, uploadField, crlf(phishingMessage))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, `"PayPal Support" <support@paypa1-secure.com>`, out["sender"])
	assert.Equal(t, "victim@example.com", out["recipient"])
	assert.Equal(t, "Your account has been limited", out["subject"])
	assert.Equal(t, "Tue, 18 Mar 2025 10:15:00 +0000", out["date"])
	assert.Equal(t, "Please verify your account at http://paypa1-secure.com/login\r\n", out["body"])
	assert.Equal(t, true, out["is_suspicious"])
	assert.Equal(t, "suspicious domain", out["analysis"])
	assert.Len(t, out, 7)

	require.Equal(t, 1, client.calls())
	assert.Equal(t,
		"sender: \"PayPal Support\" <support@paypa1-secure.com>\n"+
			"recipient: victim@example.com\n"+
			"subject: Your account has been limited\n"+
			"body: Please verify your account at http://paypa1-secure.com/login\r\n\n",
		client.prompts[0])
}

func TestAnalyzeEmailNoFile(t *testing.T) {
	client := &stubClient{}
	h := newTestHTTPIntake(client, nil)

	rec := upload(t, h, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No email file provided", decodeError(t, rec))

	rec = upload(t, h, "other_field", crlf(phishingMessage))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No email file provided", decodeError(t, rec))

	assert.Zero(t, client.calls())
}

func TestAnalyzeEmailInvalidBody(t *testing.T) {
	client := &stubClient{reply: `{"spam": false, "details": "ok"}`}
	h := newTestHTTPIntake(client, nil)

	raw := append(crlf("From: a@example.com\nTo: b@example.com\nSubject: s\nContent-Type: text/plain; charset=utf-8\n\n"), 0xff, 0xfe, 0xfd, '\r', '\n')
	rec := upload(t, h, uploadField, raw)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is not a valid .eml.", decodeError(t, rec))
	assert.Zero(t, client.calls())
}

func TestAnalyzeEmailMissingRecipient(t *testing.T) {
	client := &stubClient{}
	h := newTestHTTPIntake(client, nil)

	rec := upload(t, h, uploadField, crlf("From: a@example.com\nSubject: s\n\nbody\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required header: To", decodeError(t, rec))
}

func TestAnalyzeEmailNoTextBody(t *testing.T) {
	client := &stubClient{reply: `{"spam": false, "details": "marketing"}`}
	h := newTestHTTPIntake(client, nil)

	raw := crlf("From: shop@example.com\nTo: user@example.com\nSubject: Sale\n" +
		"Content-Type: multipart/alternative; boundary=\"b\"\n\n" +
		"--b\nContent-Type: text/html\n\n<p>sale</p>\n--b--\n")
	rec := upload(t, h, uploadField, raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Nil(t, out["body"])
	assert.Nil(t, out["date"])
	assert.Contains(t, client.prompts[0], "body: \n")
}

func TestAnalyzeEmailGatewayFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
		want   string
	}{
		{"transport", &stubClient{err: errors.New("connection refused")}, "classification request failed: connection refused"},
		{"not json", &stubClient{reply: "I think it is spam"}, "classification reply failed"},
		{"missing field", &stubClient{reply: `{"spam": true}`}, "classification reply failed"},
		{"mistyped field", &stubClient{reply: `{"spam": "yes", "details": "x"}`}, "classification reply failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryRepository()
			h := newTestHTTPIntake(tt.client, repo)

			rec := upload(t, h, uploadField, crlf(phishingMessage))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.want)

			records, err := repo.List(context.Background(), 0)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestAnalyzeEmailTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := &stubClient{reply: `{"spam": false, "details": "ok"}`}
	h := NewHTTPIntake(newService(client, nil), zap.NewNop(), HTTPConfig{MaxUploadBytes: 64})

	rec := upload(t, h, uploadField, crlf(phishingMessage))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, client.calls())
}

func TestHistory(t *testing.T) {
	client := &stubClient{reply: `{"spam": true, "details": "suspicious domain"}`}
	h := newTestHTTPIntake(client, store.NewMemoryRepository())

	for i := 0; i < 3; i++ {
		rec := upload(t, h, uploadField, crlf(phishingMessage))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []recordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Equal(t, "Your account has been limited", records[0].Subject)
	assert.True(t, records[0].IsSuspicious)

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	for name, repo := range map[string]core.AnalysisRepository{
		"no repository": nil,
		"discard":       store.NewDiscardRepository(),
	} {
		t.Run(name, func(t *testing.T) {
			h := newTestHTTPIntake(&stubClient{}, repo)

			rec := httptest.NewRecorder()
			h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/", nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "history is disabled", decodeError(t, rec))
		})
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHTTPIntake(&stubClient{}, nil)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTPIntakeStartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHTTPIntake(newService(&stubClient{}, nil), zap.NewNop(), HTTPConfig{ListenAddress: "127.0.0.1:0"})
	require.NoError(t, h.Start())
	defer h.Stop()

	resp, err := http.Get("http://" + h.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

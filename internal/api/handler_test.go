package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/auth"
	"github.com/classhub/studybuddy/internal/convstore"
	"github.com/classhub/studybuddy/internal/docstore"
	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/llm"
)

// notConfiguredGen mimics the gateway before an API key is supplied.
type notConfiguredGen struct{}

func (notConfiguredGen) Generate(ctx context.Context, _ []llms.MessageContent, _ llm.Params) (string, error) {
	return "", apperr.New(apperr.KindNotConfigured, "AI service not configured")
}

func (notConfiguredGen) ExtractImageText(context.Context, string) (string, error) {
	return "", apperr.New(apperr.KindNotConfigured, "AI service not configured")
}

func newTestHandler() *Handler {
	docs := docstore.NewMemory()
	logger := zap.NewNop()
	gen := notConfiguredGen{}
	svc := llm.NewService(gen,
		extract.New(gen, logger),
		convstore.New(docs, llm.StudyBuddySystemPrompt),
		docs, logger)
	return NewHandler(svc, auth.DevVerifier{}, logger)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "running")
}

func TestMissingBearerTokenForbidden(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ai-study-buddy/conversations", nil)
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}

func TestChatUnconfiguredMapsTo503(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai-study-buddy",
		strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer u1")
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatRejectsMalformedBody(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai-study-buddy",
		strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer u1")
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeRequiresClassID(t *testing.T) {
	mux := newTestHandler().Routes()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("some notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/analyze", &buf)
	req.Header.Set("Authorization", "Bearer u1")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["detail"], "class_id")
}

func TestSummarizeNotesWithoutMembershipForbidden(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/summarize",
		strings.NewReader(`{"note_ids":["n1"],"class_id":"c1"}`))
	req.Header.Set("Authorization", "Bearer u1")
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLinkNoteRequiresSummaryID(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/notes/n1/link-summary", nil)
	req.Header.Set("Authorization", "Bearer u1")
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkNoteMissingNote404(t *testing.T) {
	mux := newTestHandler().Routes()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/notes/n1/link-summary?summary_id=s1", nil)
	req.Header.Set("Authorization", "Bearer u1")
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

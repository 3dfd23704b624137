package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/auth"
	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/llm"
	"github.com/classhub/studybuddy/internal/models"
)

// maxUploadBytes bounds the multipart form kept in memory. Files only live
// for the duration of the request.
const maxUploadBytes = 32 << 20

type Handler struct {
	svc      *llm.Service
	verifier auth.Verifier
	logger   *zap.Logger
}

func NewHandler(svc *llm.Service, verifier auth.Verifier, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		verifier: verifier,
		logger:   logger,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/ai-study-buddy", h.authed(h.chat))
	mux.HandleFunc("POST /api/v1/ai-study-buddy/with-files", h.authed(h.chatWithFiles))
	mux.HandleFunc("GET /api/v1/ai-study-buddy/conversations", h.authed(h.listConversations))
	mux.HandleFunc("GET /api/v1/ai-study-buddy/conversations/{id}", h.authed(h.getConversation))
	mux.HandleFunc("POST /api/v1/notes/analyze", h.authed(h.analyzeFiles))
	mux.HandleFunc("POST /api/v1/notes/summarize", h.authed(h.summarizeNotes))
	mux.HandleFunc("PUT /api/v1/notes/{id}/link-summary", h.authed(h.linkNote))
	mux.HandleFunc("DELETE /api/v1/notes/{id}/unlink-summary", h.authed(h.unlinkNote))
	mux.HandleFunc("GET /api/v1/classes/{id}/note_summaries", h.authed(h.listClassSummaries))
	mux.HandleFunc("GET /{$}", h.health)

	return mux
}

type ctxKey int

const userKey ctxKey = 0

// authed verifies the bearer token and passes the resolved user through the
// request context.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			h.logger.Debug("authentication failed", zap.Error(err))
			h.writeError(w, apperr.New(apperr.KindAccessDenied, "invalid or missing credentials"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

func currentUser(r *http.Request) models.User {
	user, _ := r.Context().Value(userKey).(models.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Chat(r.Context(), currentUser(r), req)
	if err != nil {
		h.logger.Error("chat failed", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) chatWithFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.formFiles(r)
	if err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	req := llm.ChatRequest{
		Message:        r.FormValue("message"),
		ConversationID: r.FormValue("conversation_id"),
		ClassID:        r.FormValue("class_context"),
	}

	result, err := h.svc.ChatWithFiles(r.Context(), currentUser(r), req, files)
	if err != nil {
		h.logger.Error("chat with files failed", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	previews, err := h.svc.ListConversations(r.Context(), currentUser(r))
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"conversations": previews})
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetConversation(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get conversation", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, detail)
}

func (h *Handler) analyzeFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.formFiles(r)
	if err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	classID := r.FormValue("class_id")
	if classID == "" {
		h.writeError(w, apperr.New(apperr.KindInvalidInput, "class_id is required"))
		return
	}

	result, err := h.svc.AnalyzeFiles(r.Context(), currentUser(r), classID, r.FormValue("title"), files)
	if err != nil {
		h.logger.Error("file analysis failed", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) summarizeNotes(w http.ResponseWriter, r *http.Request) {
	var req llm.SummarizeNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SummarizeNotes(r.Context(), currentUser(r), req)
	if err != nil {
		h.logger.Error("note summarization failed", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) linkNote(w http.ResponseWriter, r *http.Request) {
	noteID := r.PathValue("id")
	summaryID := r.URL.Query().Get("summary_id")
	if summaryID == "" {
		h.writeError(w, apperr.New(apperr.KindInvalidInput, "summary_id is required"))
		return
	}

	if err := h.svc.LinkNoteToSummary(r.Context(), currentUser(r), noteID, summaryID); err != nil {
		h.logger.Error("failed to link note", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]string{
		"message":    "Note linked to summary successfully",
		"note_id":    noteID,
		"summary_id": summaryID,
	})
}

func (h *Handler) unlinkNote(w http.ResponseWriter, r *http.Request) {
	noteID := r.PathValue("id")
	if err := h.svc.UnlinkNoteFromSummary(r.Context(), currentUser(r), noteID); err != nil {
		h.logger.Error("failed to unlink note", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]string{
		"message": "Note unlinked from summary successfully",
		"note_id": noteID,
	})
}

func (h *Handler) listClassSummaries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := h.svc.ListClassSummaries(r.Context(), currentUser(r), r.PathValue("id"), limit)
	if err != nil {
		h.logger.Error("failed to list summaries", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"summaries": summaries})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]string{
		"message":   "Study Buddy API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) formFiles(r *http.Request) ([]extract.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}

	var files []extract.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
		}
		files = append(files, extract.File{Name: header.Filename, Data: data})
	}
	return files, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotConfigured:
		status = http.StatusServiceUnavailable
	case apperr.KindServiceUnavailable:
		status = http.StatusBadGateway
	case apperr.KindAccessDenied:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidInput, apperr.KindNoReadableContent, apperr.KindNoValidContent:
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

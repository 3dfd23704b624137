package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/convstore"
	"github.com/classhub/studybuddy/internal/docstore"
	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/models"
)

const (
	classesCollection      = "classes"
	classMembersCollection = "classMembers"

	defaultFilesMessage = "Can you help me understand these files?"

	// Stored raw-content snippet and the shorter response preview.
	rawContentStoredLimit  = 1000
	rawContentPreviewLimit = 200

	conversationPreviewLimit = 100
	conversationListLimit    = 10
	summaryListLimit         = 50
)

// Service is the top-level orchestrator for chat and summarization flows. It
// is the sole mutator of summary state; conversation state goes through the
// conversation store.
type Service struct {
	gen       Generator
	extractor *extract.Extractor
	convs     *convstore.Store
	docs      docstore.Store
	logger    *zap.Logger
}

func NewService(gen Generator, extractor *extract.Extractor, convs *convstore.Store, docs docstore.Store, logger *zap.Logger) *Service {
	return &Service{
		gen:       gen,
		extractor: extractor,
		convs:     convs,
		docs:      docs,
		logger:    logger,
	}
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	ClassID        string `json:"class_context,omitempty"`
}

type ChatResult struct {
	Reply          string    `json:"response"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessedFiles int       `json:"processed_files,omitempty"`
	FileTypes      []string  `json:"file_types,omitempty"`
}

type SummarizeNotesRequest struct {
	NoteIDs []string `json:"note_ids"`
	ClassID string   `json:"class_id"`
	Title   string   `json:"title,omitempty"`
}

type SummaryResult struct {
	Summary           models.NoteSummary `json:"summary"`
	RawContentPreview string             `json:"raw_content_preview"`
}

type ConversationPreview struct {
	ConversationID string    `json:"conversation_id"`
	Preview        string    `json:"preview"`
	ClassID        string    `json:"class_id,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
	MessageCount   int       `json:"message_count"`
}

type ConversationDetail struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
	ClassID        string           `json:"class_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastUpdated    time.Time        `json:"last_updated"`
}

// Chat runs one plain conversational turn.
func (s *Service) Chat(ctx context.Context, user models.User, req ChatRequest) (*ChatResult, error) {
	conv, err := s.convs.GetOrCreate(ctx, req.ConversationID, user.UID)
	if err != nil {
		return nil, err
	}
	if req.ClassID != "" {
		conv.ClassID = req.ClassID
	}

	s.convs.Append(conv, models.RoleUser, req.Message)

	msgs := composeChat(conv.Messages, s.classContext(ctx, req.ClassID), nil)
	reply, err := s.gen.Generate(ctx, msgs, Params{MaxTokens: 300, Temperature: f64(0.7)})
	if err != nil {
		return nil, err
	}

	s.convs.Append(conv, models.RoleAssistant, reply)
	if err := s.convs.Save(ctx, conv); err != nil {
		return nil, err
	}

	return &ChatResult{
		Reply:          reply,
		ConversationID: conv.ID,
		Timestamp:      conv.LastUpdated,
	}, nil
}

// ChatWithFiles runs a conversational turn grounded in uploaded material.
// Unsupported files are skipped; a turn with any image goes to the vision
// variant with the images embedded.
func (s *Service) ChatWithFiles(ctx context.Context, user models.User, req ChatRequest, files []extract.File) (*ChatResult, error) {
	var (
		contents  []extract.FileContent
		fileTypes []string
		skipped   error
	)
	for _, f := range files {
		if !extract.Supported(f.Name) {
			s.logger.Debug("skipping unsupported file", zap.String("file", f.Name))
			continue
		}
		content, err := s.extractor.ForChat(ctx, f)
		if err != nil {
			skipped = multierr.Append(skipped, err)
			continue
		}
		contents = append(contents, content)
		fileTypes = append(fileTypes, fileTypeLabel(f.Name))
	}
	if skipped != nil {
		s.logger.Warn("some files were skipped", zap.Error(skipped))
	}

	message := req.Message
	if message == "" {
		message = defaultFilesMessage
	}

	conv, err := s.convs.GetOrCreate(ctx, req.ConversationID, user.UID)
	if err != nil {
		return nil, err
	}
	if req.ClassID != "" {
		conv.ClassID = req.ClassID
	}

	s.convs.Append(conv, models.RoleUser, message)

	msgs := composeChat(conv.Messages, s.classContext(ctx, req.ClassID), contents)
	reply, err := s.gen.Generate(ctx, msgs, Params{MaxTokens: 500, Temperature: f64(0.7)})
	if err != nil {
		return nil, err
	}

	s.convs.Append(conv, models.RoleAssistant, reply)
	conv.FileTypes = fileTypes
	if err := s.convs.Save(ctx, conv); err != nil {
		return nil, err
	}

	return &ChatResult{
		Reply:          reply,
		ConversationID: conv.ID,
		Timestamp:      conv.LastUpdated,
		ProcessedFiles: len(contents),
		FileTypes:      fileTypes,
	}, nil
}

// AnalyzeFiles extracts text from every uploaded file (transcribing images
// through the vision model) and produces a persisted structured summary.
func (s *Service) AnalyzeFiles(ctx context.Context, user models.User, classID, title string, files []extract.File) (*SummaryResult, error) {
	if len(files) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no files uploaded")
	}

	var (
		combined strings.Builder
		sources  []string
		skipped  error
	)
	for _, f := range files {
		sources = append(sources, f.Name)
		if !extract.Supported(f.Name) {
			continue
		}
		content, err := s.extractor.ToText(ctx, f)
		if err != nil {
			skipped = multierr.Append(skipped, err)
			continue
		}
		if strings.TrimSpace(content.Text) == "" {
			continue
		}
		fmt.Fprintf(&combined, "\n\n--- Content from %s ---\n%s",
			f.Name, truncate(content.Text, summaryFileTextLimit))
	}
	if skipped != nil {
		s.logger.Warn("some files were skipped", zap.Error(skipped))
	}

	if strings.TrimSpace(combined.String()) == "" {
		return nil, apperr.New(apperr.KindNoReadableContent, "no readable content found in uploaded files")
	}

	return s.summarize(ctx, user, summarizeInput{
		content:       combined.String(),
		userTitle:     title,
		fallbackTitle: "Study Notes",
		sources:       sources,
		classID:       classID,
	})
}

// SummarizeNotes aggregates the user's existing notes into a structured
// summary and back-links each source note to it. Notes that are missing or
// belong to another class are silently skipped.
func (s *Service) SummarizeNotes(ctx context.Context, user models.User, req SummarizeNotesRequest) (*SummaryResult, error) {
	if len(req.NoteIDs) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no notes selected")
	}

	if err := s.requireMembership(ctx, req.ClassID, user.UID); err != nil {
		return nil, err
	}

	var (
		combined   strings.Builder
		noteTitles []string
		usedIDs    []string
	)
	for _, noteID := range req.NoteIDs {
		note, err := s.getNote(ctx, user.UID, noteID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return nil, err
		}
		if note.ClassID != req.ClassID {
			s.logger.Debug("skipping note from another class",
				zap.String("note_id", noteID),
				zap.String("note_class", note.ClassID))
			continue
		}
		if strings.TrimSpace(note.Content) == "" {
			continue
		}

		title := note.Title
		if title == "" {
			title = "Untitled"
		}
		noteTitles = append(noteTitles, title)
		usedIDs = append(usedIDs, noteID)
		fmt.Fprintf(&combined, "\n\n--- %s ---\n%s", title, truncate(note.Content, summaryFileTextLimit))
	}

	if strings.TrimSpace(combined.String()) == "" {
		return nil, apperr.New(apperr.KindNoValidContent, "no valid note content found")
	}

	result, err := s.summarize(ctx, user, summarizeInput{
		content:       combined.String(),
		userTitle:     req.Title,
		fallbackTitle: fmt.Sprintf("Summary of %d notes", len(noteTitles)),
		sources:       noteTitles,
		classID:       req.ClassID,
		sourceType:    "user_notes",
		sourceNoteIDs: usedIDs,
	})
	if err != nil {
		return nil, err
	}

	for _, noteID := range usedIDs {
		if err := s.docs.Set(ctx, notesCollection(user.UID), noteID, map[string]any{
			"linked_summary_id": result.Summary.SummaryID,
			"updated_at":        time.Now().UTC(),
		}, true); err != nil {
			return nil, fmt.Errorf("failed to link note %s: %w", noteID, err)
		}
	}

	return result, nil
}

type summarizeInput struct {
	content       string
	userTitle     string
	fallbackTitle string
	sources       []string
	classID       string
	sourceType    string
	sourceNoteIDs []string
}

func (s *Service) summarize(ctx context.Context, user models.User, in summarizeInput) (*SummaryResult, error) {
	raw, err := s.gen.Generate(ctx, composeSummary(in.content, in.userTitle),
		Params{MaxTokens: 800, Temperature: f64(0.3)})
	if err != nil {
		return nil, err
	}

	fields, err := parseSummary(raw)
	if err != nil {
		return nil, err
	}

	summary := models.NoteSummary{
		SummaryID:          uuid.NewString(),
		Title:              resolveTitle(in.userTitle, fields.Title, in.fallbackTitle),
		KeyConcepts:        fields.KeyConcepts,
		MainPoints:         fields.MainPoints,
		StudyTips:          fields.StudyTips,
		QuestionsForReview: fields.QuestionsForReview,
		DifficultyLevel:    fields.DifficultyLevel,
		EstimatedStudyTime: fields.EstimatedStudyTime,
		CreatedAt:          time.Now().UTC(),
		FileSources:        in.sources,
		ClassID:            in.classID,
		UserID:             user.UID,
		RawContent:         truncate(in.content, rawContentStoredLimit),
		SourceType:         in.sourceType,
		SourceNoteIDs:      in.sourceNoteIDs,
	}

	if err := s.docs.Set(ctx, summariesCollection(in.classID), summary.SummaryID, summary, false); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	s.logger.Info("created summary",
		zap.String("summary_id", summary.SummaryID),
		zap.String("class_id", in.classID),
		zap.Int("sources", len(in.sources)))

	return &SummaryResult{
		Summary:           summary,
		RawContentPreview: preview(in.content, rawContentPreviewLimit),
	}, nil
}

// LinkNoteToSummary points a note at a summary, overwriting any existing
// link. The summary id is not checked for existence (caller responsibility).
func (s *Service) LinkNoteToSummary(ctx context.Context, user models.User, noteID, summaryID string) error {
	if _, err := s.getNote(ctx, user.UID, noteID); err != nil {
		return err
	}
	return s.docs.Set(ctx, notesCollection(user.UID), noteID, map[string]any{
		"linked_summary_id": summaryID,
		"updated_at":        time.Now().UTC(),
	}, true)
}

// UnlinkNoteFromSummary clears a note's summary link.
func (s *Service) UnlinkNoteFromSummary(ctx context.Context, user models.User, noteID string) error {
	if _, err := s.getNote(ctx, user.UID, noteID); err != nil {
		return err
	}
	return s.docs.Set(ctx, notesCollection(user.UID), noteID, map[string]any{
		"linked_summary_id": nil,
		"updated_at":        time.Now().UTC(),
	}, true)
}

// ListConversations returns previews of the user's recent conversations.
func (s *Service) ListConversations(ctx context.Context, user models.User) ([]ConversationPreview, error) {
	convs, err := s.convs.ListForUser(ctx, user.UID, conversationListLimit)
	if err != nil {
		return nil, err
	}

	previews := make([]ConversationPreview, 0, len(convs))
	for _, conv := range convs {
		previews = append(previews, ConversationPreview{
			ConversationID: conv.ID,
			Preview:        preview(conv.FirstUserMessage(), conversationPreviewLimit),
			ClassID:        conv.ClassID,
			LastUpdated:    conv.LastUpdated,
			MessageCount:   len(conv.VisibleMessages()),
		})
	}
	return previews, nil
}

// GetConversation returns an ownership-checked conversation detail. The
// system instruction never appears in the returned messages.
func (s *Service) GetConversation(ctx context.Context, user models.User, id string) (*ConversationDetail, error) {
	conv, err := s.convs.Detail(ctx, id, user.UID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{
		ConversationID: conv.ID,
		Messages:       conv.VisibleMessages(),
		ClassID:        conv.ClassID,
		CreatedAt:      conv.CreatedAt,
		LastUpdated:    conv.LastUpdated,
	}, nil
}

// ListClassSummaries returns a class's summaries, newest first. Summaries are
// class-scoped for shared visibility, so membership is the only gate.
func (s *Service) ListClassSummaries(ctx context.Context, user models.User, classID string, limit int) ([]models.NoteSummary, error) {
	if err := s.requireMembership(ctx, classID, user.UID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = summaryListLimit
	}

	bodies, err := s.docs.Query(ctx, summariesCollection(classID), docstore.Query{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	summaries := make([]models.NoteSummary, 0, len(bodies))
	for _, body := range bodies {
		var sum models.NoteSummary
		if err := json.Unmarshal(body, &sum); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// classContext builds a short digest of the class and its recent discussion
// for prompt grounding. Any failure yields empty context; grounding is
// best-effort and never blocks a chat turn.
func (s *Service) classContext(ctx context.Context, classID string) string {
	if classID == "" {
		return ""
	}

	body, err := s.docs.Get(ctx, classesCollection, classID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Warn("failed to load class for context", zap.String("class_id", classID), zap.Error(err))
		}
		return ""
	}

	var class struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &class); err != nil {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Class: %s\n", class.Name)
	sb.WriteString("Recent discussion topics:\n")

	posts, err := s.docs.Query(ctx, postsCollection(classID), docstore.Query{
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   3,
	})
	if err != nil {
		s.logger.Warn("failed to load recent posts for context", zap.String("class_id", classID), zap.Error(err))
		return sb.String()
	}

	for _, postBody := range posts {
		var post struct {
			Title    string `json:"title"`
			PostType string `json:"post_type"`
		}
		if err := json.Unmarshal(postBody, &post); err != nil {
			continue
		}
		if post.Title == "" {
			post.Title = "Untitled"
		}
		if post.PostType == "" {
			post.PostType = "discussion"
		}
		fmt.Fprintf(&sb, "- %s: %s\n", post.Title, post.PostType)
	}

	return sb.String()
}

func (s *Service) requireMembership(ctx context.Context, classID, uid string) error {
	_, err := s.docs.Get(ctx, classMembersCollection, fmt.Sprintf("%s_%s", classID, uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.KindAccessDenied, "not a member of this class")
	}
	if err != nil {
		return fmt.Errorf("failed to check class membership: %w", err)
	}
	return nil
}

func (s *Service) getNote(ctx context.Context, uid, noteID string) (*models.Note, error) {
	body, err := s.docs.Get(ctx, notesCollection(uid), noteID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note %s: %w", noteID, err)
	}

	var note models.Note
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, fmt.Errorf("failed to decode note %s: %w", noteID, err)
	}
	return &note, nil
}

func notesCollection(uid string) string { return fmt.Sprintf("users/%s/notes", uid) }

func summariesCollection(classID string) string {
	return fmt.Sprintf("classes/%s/note_summaries", classID)
}

func postsCollection(classID string) string { return fmt.Sprintf("classes/%s/posts", classID) }

func fileTypeLabel(name string) string {
	switch {
	case extract.IsPDF(name):
		return "pdf"
	case extract.IsImage(name):
		return "image"
	default:
		return "text"
	}
}

func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

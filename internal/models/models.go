package models

import "time"

// User is the identity tuple yielded by the external identity provider.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"` // system, user, or assistant
	Content string `json:"content"`
}

// Conversation is an append-only message history owned by one user. The first
// message is always the system instruction and is never exposed to clients.
type Conversation struct {
	ID          string    `json:"conversation_id"`
	Messages    []Message `json:"messages"`
	ClassID     string    `json:"class_id,omitempty"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	FileTypes   []string  `json:"file_types,omitempty"`
}

// VisibleMessages returns the history without the system instruction.
func (c *Conversation) VisibleMessages() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FirstUserMessage returns the earliest user turn, for conversation previews.
func (c *Conversation) FirstUserMessage() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}

// NoteSummary is the fixed-shape study aid produced by the summarization flow.
// List fields are never nil; defaults are applied during parsing.
type NoteSummary struct {
	SummaryID          string    `json:"summary_id"`
	Title              string    `json:"title"`
	KeyConcepts        []string  `json:"key_concepts"`
	MainPoints         []string  `json:"main_points"`
	StudyTips          []string  `json:"study_tips"`
	QuestionsForReview []string  `json:"questions_for_review"`
	DifficultyLevel    string    `json:"difficulty_level"`
	EstimatedStudyTime string    `json:"estimated_study_time"`
	CreatedAt          time.Time `json:"created_at"`
	FileSources        []string  `json:"file_sources"`
	ClassID            string    `json:"class_id"`
	UserID             string    `json:"user_id"`
	RawContent         string    `json:"raw_content,omitempty"`
	SourceType         string    `json:"source_type,omitempty"`
	SourceNoteIDs      []string  `json:"source_note_ids,omitempty"`
}

type Note struct {
	NoteID          string    `json:"note_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ClassID         string    `json:"class_id"`
	LinkedSummaryID string    `json:"linked_summary_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Package convstore is the sole mutator of conversation state. Histories are
// append-only; saves overwrite the whole document, so the last full write
// wins and concurrent appends to the same id are not coordinated further.
package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/docstore"
	"github.com/classhub/studybuddy/internal/models"
)

const collection = "ai_conversations"

type Store struct {
	docs         docstore.Store
	systemPrompt string
}

func New(docs docstore.Store, systemPrompt string) *Store {
	return &Store{docs: docs, systemPrompt: systemPrompt}
}

// GetOrCreate loads the conversation or initializes a fresh one seeded with
// exactly the system instruction. An empty id gets a server-generated one.
func (s *Store) GetOrCreate(ctx context.Context, id, userID string) (*models.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}

	body, err := s.docs.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		now := time.Now().UTC()
		return &models.Conversation{
			ID:        id,
			UserID:    userID,
			Messages:  []models.Message{{Role: models.RoleSystem, Content: s.systemPrompt}},
			CreatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Append adds one message to the in-memory sequence. Nothing is persisted
// until Save, so a failed model call leaves the stored record untouched.
func (s *Store) Append(conv *models.Conversation, role, content string) {
	conv.Messages = append(conv.Messages, models.Message{Role: role, Content: content})
}

// Save overwrites the persisted record with the full message sequence.
func (s *Store) Save(ctx context.Context, conv *models.Conversation) error {
	conv.LastUpdated = time.Now().UTC()
	if err := s.docs.Set(ctx, collection, conv.ID, conv, false); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Detail returns the conversation, enforcing ownership.
func (s *Store) Detail(ctx context.Context, id, userID string) (*models.Conversation, error) {
	body, err := s.docs.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	if conv.UserID != userID {
		return nil, apperr.New(apperr.KindAccessDenied, "access denied")
	}
	return &conv, nil
}

// ListForUser returns the user's most recently updated conversations.
func (s *Store) ListForUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	bodies, err := s.docs.Query(ctx, collection, docstore.Query{
		Filters: []docstore.Filter{{Field: "user_id", Value: userID}},
		OrderBy: "last_updated",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	convs := make([]models.Conversation, 0, len(bodies))
	for _, body := range bodies {
		var conv models.Conversation
		if err := json.Unmarshal(body, &conv); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

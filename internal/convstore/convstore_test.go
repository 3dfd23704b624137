package convstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/docstore"
	"github.com/classhub/studybuddy/internal/models"
)

const testPrompt = "You are a study buddy."

func newTestStore() *Store {
	return New(docstore.NewMemory(), testPrompt)
}

func TestGetOrCreateSeedsSystemMessage(t *testing.T) {
	s := newTestStore()

	conv, err := s.GetOrCreate(context.Background(), "", "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, conv.ID, "empty id gets a generated one")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, models.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, testPrompt, conv.Messages[0].Content)
	assert.Equal(t, "user-1", conv.UserID)
}

func TestAppendTurnAddsExactlyTwoInOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	conv, err := s.GetOrCreate(ctx, "conv-1", "user-1")
	require.NoError(t, err)

	s.Append(conv, models.RoleUser, "first question")
	s.Append(conv, models.RoleAssistant, "first answer")
	require.NoError(t, s.Save(ctx, conv))

	before, err := s.GetOrCreate(ctx, "conv-1", "user-1")
	require.NoError(t, err)
	countBefore := len(before.Messages)

	s.Append(before, models.RoleUser, "second question")
	s.Append(before, models.RoleAssistant, "second answer")
	require.NoError(t, s.Save(ctx, before))

	after, err := s.GetOrCreate(ctx, "conv-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, countBefore+2, len(after.Messages))
	assert.Equal(t, models.RoleSystem, after.Messages[0].Role)
	assert.Equal(t, "first question", after.Messages[1].Content)
	assert.Equal(t, "first answer", after.Messages[2].Content)
	assert.Equal(t, "second question", after.Messages[3].Content)
	assert.Equal(t, "second answer", after.Messages[4].Content)
}

func TestDetailEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	conv, err := s.GetOrCreate(ctx, "conv-1", "owner")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, conv))

	_, err = s.Detail(ctx, "conv-1", "owner")
	require.NoError(t, err)

	_, err = s.Detail(ctx, "conv-1", "intruder")
	assert.Equal(t, apperr.KindAccessDenied, apperr.KindOf(err))

	_, err = s.Detail(ctx, "no-such-conv", "owner")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListForUserOrdersByRecency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	for _, id := range []string{"old", "new"} {
		conv, err := s.GetOrCreate(ctx, id, "user-1")
		require.NoError(t, err)
		s.Append(conv, models.RoleUser, "hi from "+id)
		require.NoError(t, s.Save(ctx, conv))
		time.Sleep(time.Millisecond)
	}

	other, err := s.GetOrCreate(ctx, "other", "user-2")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, other))

	convs, err := s.ListForUser(ctx, "user-1", 10)
	require.NoError(t, err)

	require.Len(t, convs, 2, "only the user's conversations")
	assert.Equal(t, "new", convs[0].ID)
	assert.Equal(t, "old", convs[1].ID)
}

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/models"
)

func chatHistory(userText string) []models.Message {
	return []models.Message{
		{Role: models.RoleSystem, Content: StudyBuddySystemPrompt},
		{Role: models.RoleUser, Content: userText},
	}
}

func textOf(t *testing.T, part llms.ContentPart) string {
	t.Helper()
	tp, ok := part.(llms.TextContent)
	require.True(t, ok, "expected a text part, got %T", part)
	return tp.Text
}

func TestComposeChatDoesNotMutateHistory(t *testing.T) {
	history := chatHistory("hello")

	composeChat(history, "Class: Biology", []extract.FileContent{
		{Name: "a.txt", Type: extract.TypeText, Text: "notes"},
	})

	assert.Equal(t, StudyBuddySystemPrompt, history[0].Content)
	assert.Equal(t, "hello", history[1].Content)
}

func TestComposeChatClassContextGoesIntoSystemMessage(t *testing.T) {
	msgs := composeChat(chatHistory("hi"), "Class: Chemistry", nil)

	require.Len(t, msgs, 2, "class context must not add a separate message")
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Contains(t, textOf(t, msgs[0].Parts[0]), "Class Context: Class: Chemistry")
	assert.NotContains(t, textOf(t, msgs[0].Parts[0]), "uploaded files")
}

func TestComposeChatFileCapabilityNote(t *testing.T) {
	msgs := composeChat(chatHistory("hi"), "", []extract.FileContent{
		{Name: "a.pdf", Type: extract.TypeText, Text: "pdf text"},
	})

	assert.Contains(t, textOf(t, msgs[0].Parts[0]), "You can analyze uploaded files")
}

func TestComposeChatImagePresenceBypassesTextConcatenation(t *testing.T) {
	files := []extract.FileContent{
		{Name: "slide.png", Type: extract.TypeImage, ImageURL: "data:image/png;base64,AAAA"},
		{Name: "notes.pdf", Type: extract.TypeText, Text: "pdf body text"},
	}

	msgs := composeChat(chatHistory("what is this?"), "", files)

	last := msgs[len(msgs)-1]
	require.Equal(t, llms.ChatMessageTypeHuman, last.Role)
	require.Len(t, last.Parts, 2)

	assert.Equal(t, "what is this?", textOf(t, last.Parts[0]))

	img, ok := last.Parts[1].(llms.ImageURLContent)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", img.URL)

	for _, part := range last.Parts {
		if tp, ok := part.(llms.TextContent); ok {
			assert.NotContains(t, tp.Text, "pdf body text")
		}
	}
}

func TestComposeChatTextFilesConcatenatedWithLabel(t *testing.T) {
	msgs := composeChat(chatHistory("summarize please"), "", []extract.FileContent{
		{Name: "notes.pdf", Type: extract.TypeText, Text: "pdf body text"},
	})

	last := msgs[len(msgs)-1]
	require.Len(t, last.Parts, 1)
	content := textOf(t, last.Parts[0])

	assert.True(t, strings.HasPrefix(content, "summarize please"))
	assert.Contains(t, content, "\n\nFile content:\n")
	assert.Contains(t, content, "pdf body text")
}

func TestComposeChatTruncatesFileText(t *testing.T) {
	long := strings.Repeat("a", 5000)

	msgs := composeChat(chatHistory("hi"), "", []extract.FileContent{
		{Name: "big.pdf", Type: extract.TypeText, Text: long},
	})

	content := textOf(t, msgs[len(msgs)-1].Parts[0])
	assert.LessOrEqual(t, strings.Count(content, "a"), chatFileTextLimit+100,
		"file should contribute at most %d characters", chatFileTextLimit)
	assert.NotContains(t, content, strings.Repeat("a", chatFileTextLimit+1))
}

func TestComposeSummary(t *testing.T) {
	msgs := composeSummary("the content", "My Title")

	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Contains(t, textOf(t, msgs[0].Parts[0]), "structured study summaries")

	user := textOf(t, msgs[1].Parts[0])
	assert.True(t, strings.HasPrefix(user, "Title: My Title\n\n"))
	assert.Contains(t, user, "Analyze and summarize this content:\n\nthe content")
}

func TestComposeSummaryWithoutTitle(t *testing.T) {
	msgs := composeSummary("stuff", "")
	user := textOf(t, msgs[1].Parts[0])
	assert.True(t, strings.HasPrefix(user, "Analyze and summarize this content:"))
}

package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/classhub/studybuddy/internal/extract"
	"github.com/classhub/studybuddy/internal/models"
)

const (
	// Per-file text limits, applied before composition so the outgoing
	// request never needs trimming after assembly.
	chatFileTextLimit    = 2000
	summaryFileTextLimit = 3000

	fileCapabilityNote = "\n\nYou can analyze uploaded files (PDFs and images). When files are provided, analyze their content and help the student understand the material through guiding questions."
)

// composeChat builds the outgoing message sequence from stored history plus
// optional class context and extracted file content. The stored history is
// never mutated: the system message is cloned before the context and
// capability suffixes are added, and file content only appears in the
// returned sequence.
func composeChat(history []models.Message, classContext string, files []extract.FileContent) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history))

	for _, m := range history {
		content := m.Content
		if m.Role == models.RoleSystem {
			if len(files) > 0 {
				content += fileCapabilityNote
			}
			if classContext != "" {
				content += fmt.Sprintf("\n\nClass Context: %s", classContext)
			}
		}
		msgs = append(msgs, llms.TextParts(roleOf(m.Role), content))
	}

	if len(files) == 0 || len(msgs) == 0 {
		return msgs
	}

	last := len(msgs) - 1
	if msgs[last].Role != llms.ChatMessageTypeHuman {
		return msgs
	}

	// Any image present means the whole turn goes multimodal: user text as
	// the first part, one part per image, and no text-file concatenation.
	if images := imageFiles(files); len(images) > 0 {
		parts := []llms.ContentPart{llms.TextPart(history[len(history)-1].Content)}
		for _, f := range images {
			parts = append(parts, llms.ImageURLPart(f.ImageURL))
		}
		msgs[last] = llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: parts}
		return msgs
	}

	texts := make([]string, 0, len(files))
	for _, f := range files {
		if f.Type != extract.TypeText {
			continue
		}
		texts = append(texts, fmt.Sprintf("Content from %s:\n%s", f.Name, truncate(f.Text, chatFileTextLimit)))
	}
	if len(texts) > 0 {
		content := history[len(history)-1].Content + "\n\nFile content:\n" + strings.Join(texts, "\n\n")
		msgs[last] = llms.TextParts(llms.ChatMessageTypeHuman, content)
	}

	return msgs
}

// composeSummary builds the two-message request for structured summarization.
// content is already aggregated and per-source truncated by the caller.
func composeSummary(content, userTitle string) []llms.MessageContent {
	userMessage := fmt.Sprintf("Analyze and summarize this content:\n\n%s", content)
	if userTitle != "" {
		userMessage = fmt.Sprintf("Title: %s\n\n%s", userTitle, userMessage)
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userMessage),
	}
}

func imageFiles(files []extract.FileContent) []extract.FileContent {
	var images []extract.FileContent
	for _, f := range files {
		if f.Type == extract.TypeImage {
			images = append(images, f)
		}
	}
	return images
}

func roleOf(role string) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

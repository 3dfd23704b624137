package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractImageText(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("notes.pdf"))
	assert.True(t, Supported("SLIDE.PNG"))
	assert.True(t, Supported("photo.jpeg"))
	assert.True(t, Supported("a.jpg"))
	assert.True(t, Supported("readme.txt"))
	assert.False(t, Supported("video.mp4"))
	assert.False(t, Supported("archive"))
}

func TestForChatPlainText(t *testing.T) {
	e := New(fakeOCR{}, zap.NewNop())

	content, err := e.ForChat(context.Background(), File{Name: "a.txt", Data: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, TypeText, content.Type)
	assert.Equal(t, "hello", content.Text)
	assert.False(t, content.Degraded)
}

func TestForChatInvalidUTF8IsFileScopedError(t *testing.T) {
	e := New(fakeOCR{}, zap.NewNop())

	_, err := e.ForChat(context.Background(), File{Name: "a.txt", Data: []byte{0xff, 0xfe}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestForChatImagePassThrough(t *testing.T) {
	e := New(fakeOCR{err: errors.New("should not be called")}, zap.NewNop())

	content, err := e.ForChat(context.Background(), File{Name: "slide.png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, TypeImage, content.Type)
	assert.True(t, strings.HasPrefix(content.ImageURL, "data:image/png;base64,"))
}

func TestForChatJPEGMime(t *testing.T) {
	e := New(fakeOCR{}, zap.NewNop())

	content, err := e.ForChat(context.Background(), File{Name: "pic.jpg", Data: []byte{1}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content.ImageURL, "data:image/jpeg;base64,"))
}

func TestToTextTranscribesImages(t *testing.T) {
	e := New(fakeOCR{text: "  transcribed text \n"}, zap.NewNop())

	content, err := e.ToText(context.Background(), File{Name: "slide.png", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, TypeText, content.Type)
	assert.Equal(t, "transcribed text", content.Text)
	assert.False(t, content.Degraded)
}

func TestToTextOCRFailureDegrades(t *testing.T) {
	cause := errors.New("vision model down")
	e := New(fakeOCR{err: cause}, zap.NewNop())

	content, err := e.ToText(context.Background(), File{Name: "slide.png", Data: []byte{1}})
	require.NoError(t, err, "OCR failure must never raise")
	assert.True(t, content.Degraded)
	assert.ErrorIs(t, content.Cause, cause)
	assert.Contains(t, content.Text, "slide.png")
	assert.Contains(t, content.Text, "text extraction failed")
}

func TestUnreadablePDFYieldsEmptyText(t *testing.T) {
	e := New(fakeOCR{}, zap.NewNop())

	content, err := e.ToText(context.Background(), File{Name: "broken.pdf", Data: []byte("not a pdf at all")})
	require.NoError(t, err)
	assert.Equal(t, TypeText, content.Type)
	assert.Empty(t, content.Text)
}

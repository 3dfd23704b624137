// Package extract turns uploaded files into model-consumable content. Binary
// payloads live only for the duration of a request; only derived text is ever
// persisted by callers.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

type ContentType string

const (
	TypeText  ContentType = "text"
	TypeImage ContentType = "image"
)

// File is one uploaded file, fully buffered. Uploads are bounded by the HTTP
// layer, so holding the bytes is fine.
type File struct {
	Name string
	Data []byte
}

// FileContent is the extraction outcome. Degraded means a best-effort
// fallback was substituted (currently only vision OCR failures); Text then
// holds a placeholder naming the file and Cause carries the error, so callers
// can tell degraded output from success without sniffing strings.
type FileContent struct {
	Name     string
	Type     ContentType
	Text     string
	ImageURL string
	Degraded bool
	Cause    error
}

// VisionOCR transcribes an image into text via a vision-capable model call.
type VisionOCR interface {
	ExtractImageText(ctx context.Context, dataURL string) (string, error)
}

type Extractor struct {
	ocr    VisionOCR
	logger *zap.Logger
}

func New(ocr VisionOCR, logger *zap.Logger) *Extractor {
	return &Extractor{ocr: ocr, logger: logger}
}

func IsPDF(name string) bool { return ext(name) == ".pdf" }

func IsImage(name string) bool {
	switch ext(name) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func IsPlainText(name string) bool { return ext(name) == ".txt" }

// Supported reports whether the extractor handles this filename at all.
// Unsupported files are skipped by the orchestrator without invoking us.
func Supported(name string) bool {
	return IsPDF(name) || IsImage(name) || IsPlainText(name)
}

// ForChat extracts content for conversational prompts: images pass through as
// embedded base64 references for the vision variant, everything else as text.
func (e *Extractor) ForChat(_ context.Context, f File) (FileContent, error) {
	switch {
	case IsImage(f.Name):
		return FileContent{Name: f.Name, Type: TypeImage, ImageURL: dataURL(f.Name, f.Data)}, nil
	default:
		return e.text(f)
	}
}

// ToText extracts text from any supported file, transcribing images through
// the vision model. OCR failures degrade to a placeholder instead of failing,
// so one bad image never sinks a multi-file summary.
func (e *Extractor) ToText(ctx context.Context, f File) (FileContent, error) {
	if !IsImage(f.Name) {
		return e.text(f)
	}

	text, err := e.ocr.ExtractImageText(ctx, dataURL(f.Name, f.Data))
	if err != nil {
		e.logger.Warn("image text extraction degraded",
			zap.String("file", f.Name),
			zap.Error(err))
		return FileContent{
			Name:     f.Name,
			Type:     TypeText,
			Text:     fmt.Sprintf("[Image file: %s - text extraction failed: %v]", f.Name, err),
			Degraded: true,
			Cause:    err,
		}, nil
	}
	return FileContent{Name: f.Name, Type: TypeText, Text: strings.TrimSpace(text)}, nil
}

func (e *Extractor) text(f File) (FileContent, error) {
	switch {
	case IsPDF(f.Name):
		return FileContent{Name: f.Name, Type: TypeText, Text: pdfText(f.Data)}, nil
	case IsPlainText(f.Name):
		if !utf8.Valid(f.Data) {
			return FileContent{}, fmt.Errorf("file %s is not valid UTF-8", f.Name)
		}
		return FileContent{Name: f.Name, Type: TypeText, Text: string(f.Data)}, nil
	default:
		return FileContent{}, fmt.Errorf("unsupported file type: %s", f.Name)
	}
}

// pdfText concatenates per-page text with newline separators. A page that
// fails to parse is skipped; a fully unreadable PDF yields empty text and the
// caller decides whether that is fatal.
func pdfText(data []byte) (text string) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func dataURL(name string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType(name), base64.StdEncoding.EncodeToString(data))
}

func mimeType(name string) string {
	switch ext(name) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

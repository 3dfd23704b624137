package llm

import (
	"context"
	"net/http"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/config"
)

// Params are the per-call generation knobs. An empty Model selects the text
// variant, upgraded to the vision variant when any image part is present.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Generator is the single outbound operation against the model provider.
type Generator interface {
	Generate(ctx context.Context, msgs []llms.MessageContent, p Params) (string, error)
	ExtractImageText(ctx context.Context, dataURL string) (string, error)
}

// Gateway performs one synchronous provider call per invocation. No retries;
// callers surface failures to the end user.
type Gateway struct {
	client      *openai.LLM
	textModel   string
	visionModel string
	enc         *tiktoken.Tiktoken
	logger      *zap.Logger
}

func NewGateway(cfg config.Config, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		textModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		logger:      logger,
	}

	// A missing key is not fatal at startup; calls fail fast with
	// NotConfigured instead, and the rest of the service stays usable.
	if cfg.AIConfigured() {
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.ChatModel),
			openai.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		g.client = client
	} else {
		logger.Warn("OPENAI_API_KEY not set, AI endpoints will return NotConfigured")
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("failed to load token encoding, prompt sizes will not be reported", zap.Error(err))
	} else {
		g.enc = enc
	}

	return g, nil
}

func (g *Gateway) Generate(ctx context.Context, msgs []llms.MessageContent, p Params) (string, error) {
	if g.client == nil {
		return "", apperr.New(apperr.KindNotConfigured, "AI service not configured")
	}

	model := p.Model
	if model == "" {
		model = g.textModel
		if hasImageParts(msgs) {
			model = g.visionModel
		}
	}

	g.logPromptSize(msgs, model)

	opts := []llms.CallOption{llms.WithModel(model)}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	if p.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*p.Temperature))
	}

	resp, err := g.client.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", apperr.Wrap(apperr.KindServiceUnavailable, "AI service error", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindServiceUnavailable, "AI service returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// ExtractImageText transcribes an image via the vision variant. Output cap is
// generous because lecture slides can carry a lot of text.
func (g *Gateway) ExtractImageText(ctx context.Context, dataURL string) (string, error) {
	msgs := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(ocrPrompt),
				llms.ImageURLPart(dataURL),
			},
		},
	}
	return g.Generate(ctx, msgs, Params{Model: g.visionModel, MaxTokens: 2000})
}

func (g *Gateway) logPromptSize(msgs []llms.MessageContent, model string) {
	if g.enc == nil {
		return
	}
	tokens := 0
	for _, m := range msgs {
		for _, part := range m.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				tokens += len(g.enc.Encode(tp.Text, nil, nil))
			}
		}
	}
	g.logger.Debug("sending prompt",
		zap.String("model", model),
		zap.Int("prompt_text_tokens", tokens),
		zap.Int("messages", len(msgs)))
}

func hasImageParts(msgs []llms.MessageContent) bool {
	for _, m := range msgs {
		for _, part := range m.Parts {
			if _, ok := part.(llms.ImageURLContent); ok {
				return true
			}
		}
	}
	return false
}

func f64(v float64) *float64 { return &v }

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"narration-video-gen/internal/logging"
)

var ErrNoAPIKey = errors.New("gemini api key is not configured")

// DefaultSystemPrompt asks for narration that reads well aloud and fits a
// short video.
const DefaultSystemPrompt = `You are a bank's financial advisor speaking directly to one customer. ` +
	`Recommend exactly three banking products or services that fit the customer details you are given, ` +
	`in a warm and engaging spoken tone. Start by greeting the customer by name. ` +
	`Keep all three recommendations within 220 words in total and never cut the last one short. ` +
	`Do not mention account numbers or transaction amounts. Use plain sentences ending with a period ` +
	`and no special characters such as # or *.`

const (
	temperature     = 0.7
	maxOutputTokens = 250
)

type generateFunc func(ctx context.Context, model, system, user string) (string, error)

// NarrationWriter produces narration text with Gemini.
type NarrationWriter struct {
	apiKey   string
	model    string
	log      *logging.Logger
	generate generateFunc
}

func NewNarrationWriter(apiKey, model string, log *logging.Logger) *NarrationWriter {
	w := &NarrationWriter{apiKey: apiKey, model: model, log: log}
	w.generate = w.gemini
	return w
}

// Write returns narration for userPrompt under systemPrompt
// (DefaultSystemPrompt when empty), cleaned for speech synthesis.
func (w *NarrationWriter) Write(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if w.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	w.log.Infof("ai: generating narration with %s", w.model)
	text, err := w.generate(ctx, w.model, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text = CleanNarration(text)
	if text == "" {
		return "", errors.New("generate content: empty response")
	}
	w.log.Infof("ai: ✓ narration generated with %d words", len(strings.Fields(text)))
	return text, nil
}

func (w *NarrationWriter) gemini(ctx context.Context, model, system, user string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  w.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		MaxOutputTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// CleanNarration drops markdown emphasis and collapses whitespace so the
// text reads cleanly aloud and splits into sentences on ". ".
func CleanNarration(s string) string {
	s = strings.NewReplacer("#", "", "*", "", "_", " ", "`", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// ErrNoSpeech is returned when the model heard nothing it could transcribe.
var ErrNoSpeech = errors.New("could not transcribe audio")

const (
	defaultMIMEType = "audio/webm"
	instruction     = "Transcribe this audio recording verbatim. Return only the spoken words " +
		"as plain text. Keep drug names and dosages exactly as spoken."
)

// ContentGenerator is the subset of *genai.Models used for transcription.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTranscriber turns recorded speech into text with a Gemini audio-capable model.
type GeminiTranscriber struct {
	models ContentGenerator
	model  string
}

func NewGeminiTranscriber(client *genai.Client, cfg model.TranscribeConfig) (*GeminiTranscriber, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	return NewTranscriber(client.Models, cfg.Model)
}

func NewTranscriber(models ContentGenerator, modelName string) (*GeminiTranscriber, error) {
	if models == nil {
		return nil, fmt.Errorf("content generator is nil")
	}
	if modelName == "" {
		return nil, fmt.Errorf("transcription model is empty")
	}
	return &GeminiTranscriber{models: models, model: modelName}, nil
}

// Transcribe returns the trimmed transcript of audio. An unknown mimeType is
// sniffed from the bytes, falling back to audio/webm.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}
	mimeType = normalizeMIME(mimeType, audio)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, mimeType),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	resp, err := t.models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		logx.Error().Err(err).Str("model", t.model).Int("bytes", len(audio)).Msg("transcription request failed")
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrNoSpeech
	}
	logx.Debug().Str("model", t.model).Int("chars", len(text)).Msg("audio transcribed")
	return text, nil
}

func normalizeMIME(mimeType string, audio []byte) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/") {
		return mimeType
	}
	if sniffed := http.DetectContentType(audio); strings.HasPrefix(sniffed, "audio/") {
		return sniffed
	}
	return defaultMIMEType
}

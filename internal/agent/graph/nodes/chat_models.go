package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	LLM          model.LLMConfig
	Response     model.ResponseModelConfig
	Refiner      model.RefinerModelConfig
	GeminiClient *genai.Client // required when LLM.Provider is gemini
}

// ChatModels holds the reasoning model (tool capable) and the refiner model.
type ChatModels struct {
	Response          einomodel.ToolCallingChatModel
	Refiner           einomodel.BaseChatModel
	ResponseModelName string
	RefinerModelName  string
}

// NewGeminiClient creates the shared genai client used for chat, embeddings and transcription.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the response and refiner models for the configured provider.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	provider := strings.ToLower(strings.TrimSpace(config.LLM.Provider))
	switch provider {
	case "", ProviderGemini:
		return newGeminiModels(ctx, config)
	case ProviderOpenAI:
		return newOpenAIModels(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", config.LLM.Provider)
	}
}

func newGeminiModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.GeminiClient == nil {
		return nil, fmt.Errorf("gemini client is nil")
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.GeminiClient,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	refiner, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.GeminiClient,
		Model:       config.Refiner.Model,
		Temperature: &config.Refiner.Temperature,
		MaxTokens:   &config.Refiner.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Refiner model")
		return nil, fmt.Errorf("error creating Refiner model: %w", err)
	}

	return &ChatModels{
		Response:          response,
		Refiner:           refiner,
		ResponseModelName: config.Response.Model,
		RefinerModelName:  config.Refiner.Model,
	}, nil
}

func newOpenAIModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.LLM.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	response, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.LLM.OpenAIAPIKey,
		BaseURL:     config.LLM.OpenAIBaseURL,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	refiner, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.LLM.OpenAIAPIKey,
		BaseURL:     config.LLM.OpenAIBaseURL,
		Model:       config.Refiner.Model,
		Temperature: &config.Refiner.Temperature,
		MaxTokens:   &config.Refiner.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Refiner model")
		return nil, fmt.Errorf("error creating Refiner model: %w", err)
	}

	return &ChatModels{
		Response:          response,
		Refiner:           refiner,
		ResponseModelName: config.Response.Model,
		RefinerModelName:  config.Refiner.Model,
	}, nil
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aitale-server/internal/config"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	ClientTypeOpenAI = "openai"
	ClientTypeOllama = "ollama"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ai text generation failed")

// GenerationParams - параметры генерации. Указатели отличают 0 от отсутствия значения.
type GenerationParams struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// UsageInfo содержит информацию об использовании токенов
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Estimated is true when counts come from local tokenization, not from the provider.
	Estimated bool
}

// Client - текстовый AI провайдер.
type Client interface {
	// GenerateText возвращает ответ модели на системный промт и ввод пользователя.
	// Ошибки оборачивают ErrAIGenerationFailed.
	GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// Float64 and Int build optional parameter values.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int { return &v }

// NewClient создает клиента в зависимости от AI_CLIENT_TYPE.
func NewClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case ClientTypeOpenAI, "":
		return NewOpenAIClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.StoryGenModel, cfg.AITimeout, logger), nil
	case ClientTypeOllama:
		return NewOllamaClient(cfg.AIBaseURL, cfg.StoryGenModel, cfg.AITimeout, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: %q", cfg.AIClientType)
	}
}

// --- OpenAI ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ Client = (*openAIClient)(nil)

// NewOpenAIClient creates a chat completion client for any OpenAI-compatible API.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) Client {
	openaiConfig := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		openaiConfig.BaseURL = baseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: timeout}

	log := logger.Named("OpenAIClient")
	log.Info("OpenAI client created", zap.String("baseURL", openaiConfig.BaseURL), zap.String("model", model), zap.Duration("timeout", timeout))
	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  model,
		logger: log,
	}
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: empty prompt", ErrAIGenerationFailed)
	}

	messages := make([]openaigo.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt})
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	log := c.logger.With(zap.String("model", c.model))
	log.Debug("Sending chat completion request", zap.Int("systemPromptBytes", len(systemPrompt)), zap.Int("userInputBytes", len(userInput)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:            c.model,
		Messages:         messages,
		Temperature:      float32Val(params.Temperature),
		MaxTokens:        intVal(params.MaxTokens),
		TopP:             float32Val(params.TopP),
		FrequencyPenalty: float32Val(params.FrequencyPenalty),
		PresencePenalty:  float32Val(params.PresencePenalty),
	})
	duration := time.Since(start)

	if err != nil {
		log.Error("AI API returned an error", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Error("AI API returned an empty response", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage = UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	} else {
		usage = estimateUsage(c.model, systemPrompt+userInput, text, log)
	}
	observeUsage(c.model, usage)

	log.Info("AI response received",
		zap.Duration("duration", duration),
		zap.Int("responseLength", len(text)),
		zap.Int("totalTokens", usage.TotalTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return text, usage, nil
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- Ollama ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Client = (*ollamaClient)(nil)

// NewOllamaClient creates a client for the native Ollama chat API.
func NewOllamaClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) (Client, error) {
	// api.NewClient ждет адрес без суффикса /v1
	ollamaBaseURL := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL %q: %w", ollamaBaseURL, err)
	}

	log := logger.Named("OllamaClient")
	log.Info("Ollama client created", zap.String("baseURL", ollamaBaseURL), zap.String("model", model), zap.Duration("timeout", timeout))
	return &ollamaClient{
		client:  api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		model:   model,
		timeout: timeout,
		logger:  log,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: empty prompt", ErrAIGenerationFailed)
	}

	messages := make([]api.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemPrompt})
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if params.FrequencyPenalty != nil {
		options["frequency_penalty"] = *params.FrequencyPenalty
	}
	if params.PresencePenalty != nil {
		options["presence_penalty"] = *params.PresencePenalty
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.logger.With(zap.String("model", c.model))
	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			log.Error("Ollama API returned an error", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		log.Error("Ollama API returned an empty response", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Message.Content
	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	usage = UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens == 0 {
		usage = estimateUsage(c.model, systemPrompt+userInput, text, log)
	}
	observeUsage(c.model, usage)

	log.Info("Ollama response received", zap.Duration("duration", duration), zap.Int("responseLength", len(text)))
	return text, usage, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"aitale-server/internal/ai"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	imagePromptSystemPrompt = "You are an expert at creating descriptive prompts for AI image generation based on story text."
	imagePromptInstruction  = "Create a vivid, detailed prompt for an AI image generator to illustrate the following page from a children's story. " +
		"Focus on the main scene, characters, and setting. Make it detailed but concise, emphasizing the style of a children's book illustration:\n\n"

	imagePromptMaxTokens   = 150
	imagePromptTemperature = 0.7
	fallbackPromptRunes    = 100
)

// ImagePromptDeriver получает промт иллюстрации для каждой страницы.
// Ошибка одной страницы заменяется fallback промтом и не влияет на остальные.
type ImagePromptDeriver struct {
	client      ai.Client
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewImagePromptDeriver creates a deriver. concurrency <= 1 processes pages one by one;
// requestsPerSecond <= 0 disables pacing.
func NewImagePromptDeriver(client ai.Client, concurrency int, requestsPerSecond float64, logger *zap.Logger) *ImagePromptDeriver {
	if concurrency < 1 {
		concurrency = 1
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/requestsPerSecond)), 1)
	}
	return &ImagePromptDeriver{
		client:      client,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger.Named("ImagePromptDeriver"),
	}
}

// DeriveImagePrompts возвращает по одному промту на страницу в том же порядке.
func (d *ImagePromptDeriver) DeriveImagePrompts(ctx context.Context, pages []string) []string {
	prompts := make([]string, len(pages))

	var eg errgroup.Group
	eg.SetLimit(d.concurrency)
	for i, page := range pages {
		eg.Go(func() error {
			prompts[i] = d.derive(ctx, i+1, page)
			return nil
		})
	}
	_ = eg.Wait()

	return prompts
}

func (d *ImagePromptDeriver) derive(ctx context.Context, pageNumber int, page string) string {
	log := d.logger.With(zap.Int("page", pageNumber))

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn("Rate limiter wait aborted, using fallback prompt", zap.Error(err))
			imagePromptFallbacks.Inc()
			return FallbackImagePrompt(page)
		}
	}

	prompt, _, err := d.client.GenerateText(ctx, imagePromptSystemPrompt, imagePromptInstruction+page, ai.GenerationParams{
		Temperature: ai.Float64(imagePromptTemperature),
		MaxTokens:   ai.Int(imagePromptMaxTokens),
		TopP:        ai.Float64(1),
	})
	prompt = strings.TrimSpace(prompt)
	if err != nil || prompt == "" {
		log.Error("Error generating image prompt, using fallback", zap.Error(err))
		imagePromptFallbacks.Inc()
		return FallbackImagePrompt(page)
	}
	return prompt
}

// FallbackImagePrompt строит промт из первых 100 символов страницы.
func FallbackImagePrompt(page string) string {
	runes := []rune(page)
	if len(runes) > fallbackPromptRunes {
		runes = runes[:fallbackPromptRunes]
	}
	return "Illustration for children's story: " + string(runes) + "..."
}

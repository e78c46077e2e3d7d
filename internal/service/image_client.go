package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aitale-server/internal/storage"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrImageGenerationFailed - ошибка провайдера изображений.
var ErrImageGenerationFailed = errors.New("image generation failed")

// ImageRequest - запрос на иллюстрацию.
type ImageRequest struct {
	Prompt string
	Style  string
	Size   string
}

// ImageResult - результат генерации.
type ImageResult struct {
	// URL - временная ссылка провайдера.
	URL string
	// StoredURL - постоянная ссылка в blob хранилище, пусто если копирования не было.
	StoredURL     string
	Prompt        string
	RevisedPrompt string
}

// FinalURL returns the durable URL when the image was stored, the provider URL otherwise.
func (r *ImageResult) FinalURL() string {
	if r.StoredURL != "" {
		return r.StoredURL
	}
	return r.URL
}

// ImageGenerator creates illustrations.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// ImageClientConfig - параметры провайдера изображений.
type ImageClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	DefaultSize string
	Quality     string
	Timeout     time.Duration
}

type openAIImageClient struct {
	client     *openaigo.Client
	httpClient *http.Client
	cfg        ImageClientConfig
	blobStore  storage.BlobStore
	logger     *zap.Logger
}

var _ ImageGenerator = (*openAIImageClient)(nil)

// NewOpenAIImageClient creates the image client. blobStore may be nil: images then keep the provider URL.
func NewOpenAIImageClient(cfg ImageClientConfig, blobStore storage.BlobStore, logger *zap.Logger) ImageGenerator {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	openaiConfig.HTTPClient = httpClient

	return &openAIImageClient{
		client:     openaigo.NewClientWithConfig(openaiConfig),
		httpClient: httpClient,
		cfg:        cfg,
		blobStore:  blobStore,
		logger:     logger.Named("ImageClient"),
	}
}

// EnhanceImagePrompt добавляет стиль и пометку детской иллюстрации.
func EnhanceImagePrompt(prompt, style string) string {
	if style != "" {
		return fmt.Sprintf("%s, %s style, children's book illustration", prompt, style)
	}
	return prompt + ", children's book illustration"
}

func (c *openAIImageClient) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	size := req.Size
	if size == "" {
		size = c.cfg.DefaultSize
	}
	log := c.logger.With(zap.String("model", c.cfg.Model), zap.String("size", size))

	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         EnhanceImagePrompt(req.Prompt, req.Style),
		Model:          c.cfg.Model,
		N:              1,
		Size:           size,
		Quality:        c.cfg.Quality,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	if err != nil {
		log.Error("Image API returned an error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		log.Error("Image API returned no image")
		return nil, fmt.Errorf("%w: empty response", ErrImageGenerationFailed)
	}

	result := &ImageResult{
		URL:           resp.Data[0].URL,
		Prompt:        req.Prompt,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}

	if c.blobStore != nil {
		storedURL, err := c.copyToBlobStore(ctx, result.URL)
		if err != nil {
			// Деградируем до временной ссылки провайдера.
			log.Error("Error saving image to blob storage", zap.Error(err))
			blobUploadFailures.Inc()
		} else {
			result.StoredURL = storedURL
		}
	}

	log.Info("Image generated", zap.String("url", result.FinalURL()), zap.Bool("stored", result.StoredURL != ""))
	return result, nil
}

func (c *openAIImageClient) copyToBlobStore(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: unexpected status %d", resp.StatusCode)
	}

	key := fmt.Sprintf("images/aitale-image-%d.png", time.Now().Unix())
	return c.blobStore.Upload(ctx, key, "image/png", resp.Body)
}

package models

import "time"

const (
	DefaultImageStyle = "digital art"
	DefaultImageSize  = "1024x1024"
)

// Page - страница истории.
type Page struct {
	ID          int64     `json:"id" db:"id"`
	StoryID     int64     `json:"story_id" db:"story_id"`
	Number      int       `json:"number" db:"number"`
	Content     string    `json:"content" db:"content"`
	ImagePrompt *string   `json:"image_prompt" db:"image_prompt"`
	ImageURL    *string   `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PageCreate - ручное создание страницы.
type PageCreate struct {
	StoryID     int64   `json:"story_id" binding:"required"`
	Number      int     `json:"number" binding:"required,min=1"`
	Content     string  `json:"content" binding:"required"`
	ImagePrompt *string `json:"image_prompt"`
}

// PageUpdate - частичное обновление страницы.
type PageUpdate struct {
	Content     *string `json:"content"`
	ImagePrompt *string `json:"image_prompt"`
	ImageURL    *string `json:"image_url"`
}

// ImageGenerationRequest - параметры генерации иллюстрации для страницы.
type ImageGenerationRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Size   string `json:"size"`
}

// ApplyDefaults fills style and size when absent.
func (r *ImageGenerationRequest) ApplyDefaults() {
	if r.Style == "" {
		r.Style = DefaultImageStyle
	}
	if r.Size == "" {
		r.Size = DefaultImageSize
	}
}

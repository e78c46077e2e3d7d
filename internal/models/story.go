package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StoryStatus - статус истории в жизненном цикле генерации.
type StoryStatus string

const (
	StoryStatusDraft      StoryStatus = "draft"
	StoryStatusGenerating StoryStatus = "generating"
	StoryStatusCompleted  StoryStatus = "completed"
	StoryStatusFailed     StoryStatus = "failed"
)

// CanStartGeneration reports whether a generation request may move the story to GENERATING.
func (s StoryStatus) CanStartGeneration() bool {
	return s != StoryStatusGenerating
}

// Значения по умолчанию для запроса генерации.
const (
	DefaultAgeGroup = "children"
	DefaultLanguage = "en"
	DefaultMood     = "happy"
	DefaultLength   = "medium"
	DefaultStyle    = "fairy tale"
)

// Story - история пользователя.
type Story struct {
	ID                   int64        `json:"id" db:"id"`
	UserID               int64        `json:"user_id" db:"user_id"`
	Title                string       `json:"title" db:"title"`
	Description          *string      `json:"description" db:"description"`
	Language             string       `json:"language" db:"language"`
	Theme                *string      `json:"theme" db:"theme"`
	AgeGroup             *string      `json:"age_group" db:"age_group"`
	Content              *string      `json:"content" db:"content"`
	Status               StoryStatus  `json:"status" db:"status"`
	GenerationParameters ParameterBag `json:"generation_parameters" db:"generation_parameters"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// StoryCreate - данные для создания истории в статусе DRAFT.
type StoryCreate struct {
	Title                string       `json:"title" binding:"required"`
	Description          *string      `json:"description"`
	Language             string       `json:"language"`
	Theme                *string      `json:"theme"`
	AgeGroup             *string      `json:"age_group"`
	GenerationParameters ParameterBag `json:"generation_parameters"`
}

// StoryUpdate - частичное обновление. Статус клиентом не меняется.
type StoryUpdate struct {
	Title                *string      `json:"title"`
	Description          *string      `json:"description"`
	Content              *string      `json:"content"`
	Language             *string      `json:"language"`
	Theme                *string      `json:"theme"`
	AgeGroup             *string      `json:"age_group"`
	GenerationParameters ParameterBag `json:"generation_parameters"`
}

// GenerationParameters - подсказки для построения промпта истории.
type GenerationParameters struct {
	Title        string   `json:"title,omitempty"`
	Theme        string   `json:"theme,omitempty"`
	AgeGroup     string   `json:"age_group,omitempty"`
	Language     string   `json:"language,omitempty"`
	Characters   []string `json:"characters,omitempty"`
	Setting      string   `json:"setting,omitempty"`
	Mood         string   `json:"mood,omitempty"`
	Length       string   `json:"length,omitempty"`
	Style        string   `json:"style,omitempty"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
}

// ApplyDefaults fills the request defaults for absent fields.
func (p *GenerationParameters) ApplyDefaults() {
	if p.AgeGroup == "" {
		p.AgeGroup = DefaultAgeGroup
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.Mood == "" {
		p.Mood = DefaultMood
	}
	if p.Length == "" {
		p.Length = DefaultLength
	}
	if p.Style == "" {
		p.Style = DefaultStyle
	}
}

// Bag converts the parameters into the stored key/value representation.
func (p GenerationParameters) Bag() (ParameterBag, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation parameters: %w", err)
	}
	var bag ParameterBag
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil, fmt.Errorf("failed to convert generation parameters: %w", err)
	}
	return bag, nil
}

// ParametersFromBag restores typed parameters from a stored bag. Unknown keys are ignored.
func ParametersFromBag(bag ParameterBag) (GenerationParameters, error) {
	var p GenerationParameters
	if len(bag) == 0 {
		return p, nil
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return p, fmt.Errorf("failed to marshal parameter bag: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to decode parameter bag: %w", err)
	}
	return p, nil
}

// ParameterBag - произвольный набор ключ/значение. В БД хранится как JSON в text колонке.
type ParameterBag map[string]any

// Scan implements sql.Scanner.
func (b *ParameterBag) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type %T for ParameterBag", src)
	}
	if strings.TrimSpace(string(raw)) == "" {
		*b = nil
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to decode generation_parameters: %w", err)
	}
	*b = m
	return nil
}

// Value implements driver.Valuer.
func (b ParameterBag) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]any(b))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// StringPtr returns the serialized bag or nil, for use as a query argument.
func (b ParameterBag) StringPtr() (*string, error) {
	v, err := b.Value()
	if err != nil || v == nil {
		return nil, err
	}
	s := v.(string)
	return &s, nil
}

// StringValue returns *s or "" when s is nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

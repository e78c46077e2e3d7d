package service

import (
	"strings"

	"aitale-server/internal/models"
)

const (
	storytellerSystemPrompt = "You are an expert storyteller specializing in children's fairy tales that are imaginative, engaging, and suitable for the target age group."

	storyPromptHeader = "Create a delightful children's story with the following characteristics:"
	storyPromptFooter = "Format the story into clearly separated pages suitable for a children's book. " +
		"Each page should have a cohesive scene that works well with an illustration."
)

// Длина истории -> ориентировочное число страниц.
var pageCountByLength = map[string]string{
	"short":  "3-5 pages",
	"medium": "6-10 pages",
	"long":   "11-15 pages",
}

// BuildStoryPrompt собирает пользовательский промт для генерации истории.
// Пустые поля пропускаются, неизвестная длина считается medium.
func BuildStoryPrompt(params models.GenerationParameters) string {
	pageCount, ok := pageCountByLength[params.Length]
	if !ok {
		pageCount = pageCountByLength[models.DefaultLength]
	}

	lines := []string{
		storyPromptHeader,
		"Length: " + pageCount,
	}

	addLine := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	addLine("Title", params.Title)
	addLine("Theme", params.Theme)
	addLine("Target audience", params.AgeGroup)
	if len(params.Characters) > 0 {
		lines = append(lines, "Characters: "+strings.Join(params.Characters, ", "))
	}
	addLine("Setting", params.Setting)
	addLine("Mood", params.Mood)
	addLine("Style", params.Style)
	addLine("Additional instructions", params.CustomPrompt)

	lines = append(lines, storyPromptFooter)
	return strings.Join(lines, "\n")
}

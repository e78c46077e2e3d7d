package service

import (
	"strings"
	"testing"

	"aitale-server/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildStoryPrompt_AllFields(t *testing.T) {
	prompt := BuildStoryPrompt(models.GenerationParameters{
		Title:        "The Lost Star",
		Theme:        "friendship",
		AgeGroup:     "4-6",
		Language:     "en",
		Characters:   []string{"Luna", "Pip the owl"},
		Setting:      "an enchanted forest",
		Mood:         "happy",
		Length:       "short",
		Style:        "fairy tale",
		CustomPrompt: "End with a lullaby.",
	})

	want := strings.Join([]string{
		"Create a delightful children's story with the following characteristics:",
		"Length: 3-5 pages",
		"Title: The Lost Star",
		"Theme: friendship",
		"Target audience: 4-6",
		"Characters: Luna, Pip the owl",
		"Setting: an enchanted forest",
		"Mood: happy",
		"Style: fairy tale",
		"Additional instructions: End with a lullaby.",
		"Format the story into clearly separated pages suitable for a children's book. Each page should have a cohesive scene that works well with an illustration.",
	}, "\n")
	assert.Equal(t, want, prompt)
}

func TestBuildStoryPrompt_SkipsEmptyFields(t *testing.T) {
	prompt := BuildStoryPrompt(models.GenerationParameters{Length: "long", Mood: "calm"})

	lines := strings.Split(prompt, "\n")
	assert.Equal(t, []string{
		storyPromptHeader,
		"Length: 11-15 pages",
		"Mood: calm",
		storyPromptFooter,
	}, lines)
	assert.NotContains(t, prompt, "Title:")
	assert.NotContains(t, prompt, "Characters:")
}

func TestBuildStoryPrompt_UnknownLengthFallsBackToMedium(t *testing.T) {
	for _, length := range []string{"", "epic", "SHORT"} {
		prompt := BuildStoryPrompt(models.GenerationParameters{Length: length})
		assert.Contains(t, prompt, "\nLength: 6-10 pages\n", "length %q", length)
	}
}

func TestBuildStoryPrompt_WithDefaults(t *testing.T) {
	params := models.GenerationParameters{Title: "Moon"}
	params.ApplyDefaults()

	prompt := BuildStoryPrompt(params)
	assert.Contains(t, prompt, "Target audience: children")
	assert.Contains(t, prompt, "Mood: happy")
	assert.Contains(t, prompt, "Style: fairy tale")
	assert.Contains(t, prompt, "Length: 6-10 pages")
	assert.NotContains(t, prompt, "Language")
}

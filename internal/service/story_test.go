package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aitale-server/internal/ai"
	"aitale-server/internal/config"
	"aitale-server/internal/mocks"
	"aitale-server/internal/models"
	"aitale-server/internal/service"
	"aitale-server/internal/taskmanager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const storyID int64 = 10

var (
	owner    = &models.User{ID: 1, Username: "alice", IsActive: true}
	stranger = &models.User{ID: 2, Username: "bob", IsActive: true}
	admin    = &models.User{ID: 3, Username: "root", IsActive: true, IsSuperuser: true}
)

func isStoryPrompt(s string) bool {
	return strings.HasPrefix(s, "Create a delightful children's story")
}

func isImagePromptRequest(s string) bool {
	return strings.HasPrefix(s, "Create a vivid, detailed prompt")
}

type storyFixture struct {
	db      *mocks.TxManager
	stories *mocks.StoryRepository
	pages   *mocks.PageRepository
	ai      *mocks.AIClient
	tasks   *mocks.InlineSubmitter
	svc     service.StoryService
}

func newStoryFixture(t *testing.T, policy string) *storyFixture {
	t.Helper()
	f := &storyFixture{
		db:      &mocks.TxManager{},
		stories: &mocks.StoryRepository{},
		pages:   &mocks.PageRepository{},
		ai:      &mocks.AIClient{},
		tasks:   &mocks.InlineSubmitter{},
	}
	cfg := &config.Config{MaxStoryLength: 5000, PageRegenerationPolicy: policy}
	deriver := service.NewImagePromptDeriver(f.ai, 1, 0, zap.NewNop())
	f.svc = service.NewStoryService(f.db, f.stories, f.pages, f.tasks, f.ai, deriver, cfg, zap.NewNop())
	return f
}

func (f *storyFixture) expectGeneratingSaved() {
	f.stories.On("Update", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Story")).Return(nil).Once()
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusGenerating).Return(nil).Once()
}

func (f *storyFixture) expectStoryText(text string) {
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(isStoryPrompt), mock.Anything).
		Return(text, ai.UsageInfo{TotalTokens: 42}, nil).Once()
}

func (f *storyFixture) expectImagePrompts(prompt string) {
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(isImagePromptRequest), mock.Anything).
		Return(prompt, ai.UsageInfo{}, nil)
}

func (f *storyFixture) captureBatch(saved *[]*models.Page) {
	f.pages.On("CreateBatch", mock.Anything, mock.Anything, mock.AnythingOfType("[]*models.Page")).
		Run(func(args mock.Arguments) {
			*saved = args.Get(2).([]*models.Page)
		}).Return(nil).Once()
}

func draftStory() *models.Story {
	return &models.Story{ID: storyID, UserID: owner.ID, Language: "en", Status: models.StoryStatusDraft}
}

func TestGenerateStory_LostStarEndToEnd(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	text := "PAGE 1\nOnce...\nPAGE 2\nThen..."

	lostStar := draftStory()
	lostStar.Title = "The Lost Star"

	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(lostStar, nil)
	f.expectGeneratingSaved()
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(s string) bool {
		return isStoryPrompt(s) &&
			strings.Contains(s, "\nLength: 3-5 pages\n") &&
			strings.Contains(s, "\nTitle: The Lost Star\n") &&
			strings.Contains(s, "\nTarget audience: "+models.DefaultAgeGroup+"\n") &&
			strings.Contains(s, "\nMood: happy\n") &&
			!strings.Contains(s, "\nTheme: ")
	}), mock.Anything).Return(text, ai.UsageInfo{}, nil).Once()
	f.expectImagePrompts("  A fallen star glowing in a meadow  ")
	f.pages.On("MaxNumber", mock.Anything, mock.Anything, storyID).Return(0, nil).Once()
	f.stories.On("Complete", mock.Anything, mock.Anything, storyID, text).Return(nil).Once()
	var saved []*models.Page
	f.captureBatch(&saved)

	story, err := f.svc.GenerateStory(context.Background(), owner, storyID,
		models.GenerationParameters{Length: "short", Mood: "happy"})
	require.NoError(t, err)

	assert.Equal(t, models.StoryStatusGenerating, story.Status)
	assert.Equal(t, "The Lost Star", story.Title)
	assert.Nil(t, story.Theme)
	require.NotNil(t, story.AgeGroup)
	assert.Equal(t, models.DefaultAgeGroup, *story.AgeGroup)
	assert.Equal(t, "en", story.GenerationParameters["language"])
	assert.Equal(t, "happy", story.GenerationParameters["mood"])
	assert.Equal(t, "short", story.GenerationParameters["length"])
	assert.Equal(t, "The Lost Star", story.GenerationParameters["title"])

	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Number)
	assert.Equal(t, "Once...", saved[0].Content)
	assert.Equal(t, 2, saved[1].Number)
	assert.Equal(t, "Then...", saved[1].Content)
	for _, p := range saved {
		assert.Equal(t, storyID, p.StoryID)
		require.NotNil(t, p.ImagePrompt)
		assert.Equal(t, "A fallen star glowing in a meadow", *p.ImagePrompt)
	}

	assert.Equal(t, []error{nil}, f.tasks.TaskErrs)
	assert.Equal(t, []string{"generate-story-10"}, f.tasks.Names)
	commits, rollbacks := f.db.Stats()
	assert.Equal(t, 2, commits)
	assert.Zero(t, rollbacks)
	f.stories.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed)
	f.stories.AssertExpectations(t)
	f.pages.AssertExpectations(t)
}

func TestGenerateStory_AppendPolicyContinuesNumbering(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	completed := draftStory()
	completed.Status = models.StoryStatusCompleted

	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(completed, nil)
	f.expectGeneratingSaved()
	f.expectStoryText("One.\n\nTwo.\n\nThree.")
	f.expectImagePrompts("prompt")
	f.pages.On("MaxNumber", mock.Anything, mock.Anything, storyID).Return(2, nil).Once()
	f.stories.On("Complete", mock.Anything, mock.Anything, storyID, "One.\n\nTwo.\n\nThree.").Return(nil).Once()
	var saved []*models.Page
	f.captureBatch(&saved)

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.NoError(t, err)

	require.Len(t, saved, 2)
	assert.Equal(t, 3, saved[0].Number)
	assert.Equal(t, "One.\n\nTwo.", saved[0].Content)
	assert.Equal(t, 4, saved[1].Number)
	assert.Equal(t, "Three.", saved[1].Content)
	f.pages.AssertNotCalled(t, "DeleteByStory", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateStory_ReplacePolicyDeletesOldPages(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationReplace)
	failed := draftStory()
	failed.Status = models.StoryStatusFailed

	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(failed, nil)
	f.expectGeneratingSaved()
	f.expectStoryText("PAGE 1\nA\nPAGE 2\nB")
	f.expectImagePrompts("prompt")
	f.pages.On("DeleteByStory", mock.Anything, mock.Anything, storyID).Return(int64(5), nil).Once()
	f.stories.On("Complete", mock.Anything, mock.Anything, storyID, "PAGE 1\nA\nPAGE 2\nB").Return(nil).Once()
	var saved []*models.Page
	f.captureBatch(&saved)

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.NoError(t, err)

	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Number)
	assert.Equal(t, 2, saved[1].Number)
	f.pages.AssertNotCalled(t, "MaxNumber", mock.Anything, mock.Anything, mock.Anything)
	f.pages.AssertExpectations(t)
}

func TestGenerateStory_AlreadyGenerating(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	running := draftStory()
	running.Status = models.StoryStatusGenerating
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(running, nil)

	story, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.Error(t, err)
	assert.Nil(t, story)
	assert.ErrorIs(t, err, models.ErrGenerationInProgress)
	assert.Equal(t, "Story is already being generated", err.Error())
	assert.Equal(t, models.StoryStatusGenerating, running.Status)
	f.stories.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.tasks.Names)
}

func TestGenerateStory_AccessChecks(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(nil, models.ErrStoryNotFound)

		_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
		assert.Equal(t, "Story 10 not found", err.Error())
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)

		_, err := f.svc.GenerateStory(context.Background(), stranger, storyID, models.GenerationParameters{})
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, "Not authorized to generate content for this story", err.Error())
		assert.Empty(t, f.tasks.Names)
	})

	t.Run("superuser may generate", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
		f.expectGeneratingSaved()
		f.expectStoryText("Hello.")
		f.expectImagePrompts("prompt")
		f.pages.On("MaxNumber", mock.Anything, mock.Anything, storyID).Return(0, nil)
		f.stories.On("Complete", mock.Anything, mock.Anything, storyID, "Hello.").Return(nil)
		var saved []*models.Page
		f.captureBatch(&saved)

		_, err := f.svc.GenerateStory(context.Background(), admin, storyID, models.GenerationParameters{})
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})
}

func TestGenerateStory_UnsupportedLanguage(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{Language: "xx"})
	assert.ErrorIs(t, err, models.ErrUnsupportedLanguage)
	f.stories.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateStory_TextFailureMarksFailed(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.expectGeneratingSaved()
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(isStoryPrompt), mock.Anything).
		Return("", ai.UsageInfo{}, ai.ErrAIGenerationFailed).Once()
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed).Return(nil).Once()

	story, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{Title: "T"})
	require.NoError(t, err, "background failures are not surfaced to the caller")
	assert.Equal(t, models.StoryStatusGenerating, story.Status)

	require.Len(t, f.tasks.TaskErrs, 1)
	assert.ErrorIs(t, f.tasks.TaskErrs[0], ai.ErrAIGenerationFailed)
	assert.Equal(t, 1, f.db.Acquired)
	f.stories.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.pages.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.Anything)
	f.stories.AssertExpectations(t)
}

func TestGenerateStory_EmptyTextMarksFailed(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.expectGeneratingSaved()
	f.expectStoryText("  \n\n ")
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed).Return(nil).Once()

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.NoError(t, err)

	require.Len(t, f.tasks.TaskErrs, 1)
	assert.Error(t, f.tasks.TaskErrs[0])
	f.ai.AssertNumberOfCalls(t, "GenerateText", 1)
	f.stories.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateStory_SaveFailureRollsBack(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.expectGeneratingSaved()
	f.expectStoryText("PAGE 1\nA")
	f.expectImagePrompts("prompt")
	f.pages.On("MaxNumber", mock.Anything, mock.Anything, storyID).Return(0, nil)
	f.stories.On("Complete", mock.Anything, mock.Anything, storyID, "PAGE 1\nA").Return(nil)
	f.pages.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).Return(models.ErrPageNumberTaken)
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed).Return(nil).Once()

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.NoError(t, err)

	commits, rollbacks := f.db.Stats()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, rollbacks)
	assert.ErrorIs(t, f.tasks.TaskErrs[0], models.ErrPageNumberTaken)
	f.stories.AssertExpectations(t)
}

func TestGenerateStory_ImagePromptFailureUsesFallback(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	page := strings.Repeat("a", 150)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.expectGeneratingSaved()
	f.expectStoryText(page)
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(isImagePromptRequest), mock.Anything).
		Return("", ai.UsageInfo{}, errors.New("rate limited"))
	f.pages.On("MaxNumber", mock.Anything, mock.Anything, storyID).Return(0, nil)
	f.stories.On("Complete", mock.Anything, mock.Anything, storyID, page).Return(nil)
	var saved []*models.Page
	f.captureBatch(&saved)

	_, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	require.NoError(t, err)

	require.Len(t, saved, 1)
	assert.Equal(t, "Illustration for children's story: "+strings.Repeat("a", 100)+"...", *saved[0].ImagePrompt)
	assert.Equal(t, []error{nil}, f.tasks.TaskErrs)
}

func TestGenerateStory_QueueFull(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.tasks.Err = taskmanager.ErrCapacityExceeded
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.expectGeneratingSaved()
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed).Return(nil).Once()

	story, err := f.svc.GenerateStory(context.Background(), owner, storyID, models.GenerationParameters{})
	assert.Nil(t, story)
	assert.ErrorIs(t, err, models.ErrTaskQueueFull)
	f.stories.AssertExpectations(t)
	f.ai.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateStory_MergeKeepsStoryValues(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	sea, young := "sea", "3-5"
	existing := draftStory()
	existing.Title = "Existing Title"
	existing.Theme = &sea
	existing.AgeGroup = &young
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(existing, nil)
	f.expectGeneratingSaved()
	f.tasks.Err = taskmanager.ErrShuttingDown
	f.stories.On("UpdateStatus", mock.Anything, mock.Anything, storyID, models.StoryStatusFailed).Return(nil)

	_, _ = f.svc.GenerateStory(context.Background(), owner, storyID,
		models.GenerationParameters{Title: "Other", Theme: "space", AgeGroup: "7-9", Language: "fr"})

	assert.Equal(t, "Existing Title", existing.Title)
	assert.Equal(t, "sea", *existing.Theme)
	assert.Equal(t, "3-5", *existing.AgeGroup)
	assert.Equal(t, "en", existing.Language)

	bag := existing.GenerationParameters
	assert.Equal(t, "Other", bag["title"])
	assert.Equal(t, "sea", bag["theme"])
	assert.Equal(t, "3-5", bag["age_group"])
	assert.Equal(t, "fr", bag["language"])
}

func TestStoryCreate(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Story")).
		Run(func(args mock.Arguments) { args.Get(2).(*models.Story).ID = storyID }).
		Return(nil).Once()

	story, err := f.svc.Create(context.Background(), owner, models.StoryCreate{Title: "Moon"})
	require.NoError(t, err)
	assert.Equal(t, storyID, story.ID)
	assert.Equal(t, owner.ID, story.UserID)
	assert.Equal(t, models.StoryStatusDraft, story.Status)
	assert.Equal(t, "en", story.Language)

	_, err = f.svc.Create(context.Background(), owner, models.StoryCreate{Title: "Moon", Language: "klingon"})
	assert.ErrorIs(t, err, models.ErrUnsupportedLanguage)
}

func TestStoryUpdate(t *testing.T) {
	t.Run("content rejected unless completed", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
		content := "new text"

		_, err := f.svc.Update(context.Background(), owner, storyID, models.StoryUpdate{Content: &content})
		assert.ErrorIs(t, err, models.ErrContentNotEditable)
		f.stories.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("content on completed story", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		completed := draftStory()
		completed.Status = models.StoryStatusCompleted
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(completed, nil)
		f.stories.On("Update", mock.Anything, mock.Anything, completed).Return(nil).Once()
		f.stories.On("UpdateContent", mock.Anything, mock.Anything, storyID, "edited").Return(nil).Once()
		title, content := "Renamed", "edited"

		story, err := f.svc.Update(context.Background(), owner, storyID, models.StoryUpdate{Title: &title, Content: &content})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", story.Title)
		assert.Equal(t, "edited", *story.Content)
		assert.Equal(t, models.StoryStatusCompleted, story.Status)
		f.stories.AssertExpectations(t)
	})

	t.Run("invalid language", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
		lang := "xx"

		_, err := f.svc.Update(context.Background(), owner, storyID, models.StoryUpdate{Language: &lang})
		assert.ErrorIs(t, err, models.ErrUnsupportedLanguage)
	})

	t.Run("stranger", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)

		_, err := f.svc.Update(context.Background(), stranger, storyID, models.StoryUpdate{})
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, "Not authorized to modify this story", err.Error())
	})
}

func TestStoryDelete(t *testing.T) {
	f := newStoryFixture(t, config.PageRegenerationAppend)
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
	f.stories.On("Delete", mock.Anything, mock.Anything, storyID).Return(nil).Once()

	err := f.svc.Delete(context.Background(), stranger, storyID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, "Not authorized to delete this story", err.Error())

	require.NoError(t, f.svc.Delete(context.Background(), owner, storyID))
	f.stories.AssertExpectations(t)
}

func TestStoryAdminOverride(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)

		story, err := f.svc.Get(context.Background(), admin, storyID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, story.UserID)

		_, err = f.svc.Get(context.Background(), stranger, storyID)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, "Not authorized to access this story", err.Error())
	})

	t.Run("update", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
		f.stories.On("Update", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Story")).Return(nil).Once()
		title := "Moderated"

		story, err := f.svc.Update(context.Background(), admin, storyID, models.StoryUpdate{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Moderated", story.Title)
		assert.Equal(t, owner.ID, story.UserID, "ownership does not move to the admin")
		f.stories.AssertExpectations(t)
	})

	t.Run("delete", func(t *testing.T) {
		f := newStoryFixture(t, config.PageRegenerationAppend)
		f.stories.On("GetByID", mock.Anything, mock.Anything, storyID).Return(draftStory(), nil)
		f.stories.On("Delete", mock.Anything, mock.Anything, storyID).Return(nil).Once()

		require.NoError(t, f.svc.Delete(context.Background(), admin, storyID))
		f.stories.AssertExpectations(t)
	})
}

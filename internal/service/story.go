package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aitale-server/internal/ai"
	"aitale-server/internal/config"
	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"
	"aitale-server/internal/taskmanager"

	"go.uber.org/zap"
)

const (
	storyTemperature      = 0.7
	storyPenalty          = 0.5
	markFailedTimeout     = 10 * time.Second
	msgGenerationRunning  = "Story is already being generated"
	msgTaskQueueFull      = "Too many background tasks are running, try again later"
	msgContentNotEditable = "Content can only be edited when the story is completed"
)

// errNoPagesGenerated - модель вернула текст, из которого не получилось ни одной страницы.
var errNoPagesGenerated = errors.New("generated story text produced no pages")

// StoryService - CRUD историй и запуск генерации.
type StoryService interface {
	Create(ctx context.Context, user *models.User, in models.StoryCreate) (*models.Story, error)
	Get(ctx context.Context, user *models.User, id int64) (*models.Story, error)
	List(ctx context.Context, user *models.User, offset, limit int) ([]*models.Story, error)
	Update(ctx context.Context, user *models.User, id int64, upd models.StoryUpdate) (*models.Story, error)
	Delete(ctx context.Context, user *models.User, id int64) error
	// GenerateStory переводит историю в GENERATING и запускает генерацию в фоне.
	GenerateStory(ctx context.Context, user *models.User, id int64, params models.GenerationParameters) (*models.Story, error)
}

type storyServiceImpl struct {
	db         interfaces.TxManager
	storyRepo  interfaces.StoryRepository
	pageRepo   interfaces.PageRepository
	tasks      taskmanager.Submitter
	textClient ai.Client
	deriver    *ImagePromptDeriver
	cfg        *config.Config
	logger     *zap.Logger
}

var _ StoryService = (*storyServiceImpl)(nil)

// NewStoryService creates the story service.
func NewStoryService(
	db interfaces.TxManager,
	storyRepo interfaces.StoryRepository,
	pageRepo interfaces.PageRepository,
	tasks taskmanager.Submitter,
	textClient ai.Client,
	deriver *ImagePromptDeriver,
	cfg *config.Config,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		db:         db,
		storyRepo:  storyRepo,
		pageRepo:   pageRepo,
		tasks:      tasks,
		textClient: textClient,
		deriver:    deriver,
		cfg:        cfg,
		logger:     logger.Named("StoryService"),
	}
}

func (s *storyServiceImpl) Create(ctx context.Context, user *models.User, in models.StoryCreate) (*models.Story, error) {
	language := in.Language
	if language == "" {
		language = models.DefaultLanguage
	}
	if err := validateLanguage(language); err != nil {
		return nil, err
	}

	story := &models.Story{
		UserID:               user.ID,
		Title:                in.Title,
		Description:          in.Description,
		Language:             language,
		Theme:                in.Theme,
		AgeGroup:             in.AgeGroup,
		Status:               models.StoryStatusDraft,
		GenerationParameters: in.GenerationParameters,
	}
	if err := s.storyRepo.Create(ctx, s.db.Querier(), story); err != nil {
		return nil, err
	}
	return story, nil
}

func (s *storyServiceImpl) Get(ctx context.Context, user *models.User, id int64) (*models.Story, error) {
	return s.loadOwned(ctx, user, id, "Not authorized to access this story")
}

func (s *storyServiceImpl) List(ctx context.Context, user *models.User, offset, limit int) ([]*models.Story, error) {
	return s.storyRepo.ListByUser(ctx, s.db.Querier(), user.ID, offset, limit)
}

func (s *storyServiceImpl) Update(ctx context.Context, user *models.User, id int64, upd models.StoryUpdate) (*models.Story, error) {
	story, err := s.loadOwned(ctx, user, id, "Not authorized to modify this story")
	if err != nil {
		return nil, err
	}

	if upd.Language != nil {
		if err := validateLanguage(*upd.Language); err != nil {
			return nil, err
		}
		story.Language = *upd.Language
	}
	if upd.Content != nil && story.Status != models.StoryStatusCompleted {
		return nil, models.WithMessage(models.ErrContentNotEditable, msgContentNotEditable)
	}
	if upd.Title != nil {
		story.Title = *upd.Title
	}
	if upd.Description != nil {
		story.Description = upd.Description
	}
	if upd.Theme != nil {
		story.Theme = upd.Theme
	}
	if upd.AgeGroup != nil {
		story.AgeGroup = upd.AgeGroup
	}
	if upd.GenerationParameters != nil {
		story.GenerationParameters = upd.GenerationParameters
	}

	err = s.db.WithinTx(ctx, func(tx interfaces.DBTX) error {
		if err := s.storyRepo.Update(ctx, tx, story); err != nil {
			return err
		}
		if upd.Content != nil {
			return s.storyRepo.UpdateContent(ctx, tx, story.ID, *upd.Content)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrContentNotEditable) {
			// Статус успел смениться после чтения.
			return nil, models.WithMessage(models.ErrContentNotEditable, msgContentNotEditable)
		}
		return nil, err
	}
	if upd.Content != nil {
		story.Content = upd.Content
	}
	return story, nil
}

func (s *storyServiceImpl) Delete(ctx context.Context, user *models.User, id int64) error {
	if _, err := s.loadOwned(ctx, user, id, "Not authorized to delete this story"); err != nil {
		return err
	}
	if err := s.storyRepo.Delete(ctx, s.db.Querier(), id); err != nil {
		return err
	}
	s.logger.Info("Story deleted", zap.Int64("storyID", id), zap.Int64("userID", user.ID))
	return nil
}

func (s *storyServiceImpl) GenerateStory(ctx context.Context, user *models.User, id int64, params models.GenerationParameters) (*models.Story, error) {
	log := s.logger.With(zap.Int64("storyID", id), zap.Int64("userID", user.ID))

	story, err := s.loadOwned(ctx, user, id, "Not authorized to generate content for this story")
	if err != nil {
		return nil, err
	}
	// Проверка и установка статуса не атомарны: два одновременных запроса могут оба пройти.
	if !story.Status.CanStartGeneration() {
		log.Warn("Generation requested while already generating")
		return nil, models.WithMessage(models.ErrGenerationInProgress, msgGenerationRunning)
	}

	params.ApplyDefaults()
	if err := validateLanguage(params.Language); err != nil {
		return nil, err
	}
	mergeGenerationParameters(story, &params)

	bag, err := params.Bag()
	if err != nil {
		return nil, err
	}
	story.GenerationParameters = bag

	err = s.db.WithinTx(ctx, func(tx interfaces.DBTX) error {
		if err := s.storyRepo.Update(ctx, tx, story); err != nil {
			return err
		}
		return s.storyRepo.UpdateStatus(ctx, tx, story.ID, models.StoryStatusGenerating)
	})
	if err != nil {
		log.Error("Failed to mark story as generating", zap.Error(err))
		return nil, err
	}
	story.Status = models.StoryStatusGenerating

	taskID, err := s.tasks.SubmitTask(ctx, fmt.Sprintf("generate-story-%d", story.ID), func(taskCtx context.Context) error {
		return s.runGeneration(taskCtx, story.ID, params)
	})
	if err != nil {
		log.Error("Background task was not accepted, marking story as failed", zap.Error(err))
		if markErr := s.storyRepo.UpdateStatus(ctx, s.db.Querier(), story.ID, models.StoryStatusFailed); markErr != nil {
			log.Error("Failed to mark story as failed", zap.Error(markErr))
		}
		storyGenerationsTotal.WithLabelValues(string(models.StoryStatusFailed)).Inc()
		return nil, models.WithMessage(models.ErrTaskQueueFull, msgTaskQueueFull)
	}

	log.Info("Story generation scheduled", zap.String("taskID", taskID.String()))
	return story, nil
}

// runGeneration выполняется в фоне. Любая ошибка переводит историю в FAILED.
func (s *storyServiceImpl) runGeneration(ctx context.Context, storyID int64, params models.GenerationParameters) error {
	log := s.logger.With(zap.Int64("storyID", storyID))
	start := time.Now()

	pageCount, err := s.generate(ctx, storyID, params)
	storyGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("Story generation failed", zap.Error(err))
		storyGenerationsTotal.WithLabelValues(string(models.StoryStatusFailed)).Inc()
		s.markFailed(storyID)
		return err
	}

	storyGenerationsTotal.WithLabelValues(string(models.StoryStatusCompleted)).Inc()
	storyPagesGenerated.Add(float64(pageCount))
	log.Info("Story generation completed", zap.Int("pages", pageCount), zap.Duration("took", time.Since(start)))
	return nil
}

func (s *storyServiceImpl) generate(ctx context.Context, storyID int64, params models.GenerationParameters) (int, error) {
	text, usage, err := s.textClient.GenerateText(ctx, storytellerSystemPrompt, BuildStoryPrompt(params), ai.GenerationParams{
		Temperature:      ai.Float64(storyTemperature),
		MaxTokens:        ai.Int(s.cfg.MaxStoryLength),
		TopP:             ai.Float64(1),
		FrequencyPenalty: ai.Float64(storyPenalty),
		PresencePenalty:  ai.Float64(storyPenalty),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to generate story text: %w", err)
	}
	text = strings.TrimSpace(text)
	s.logger.Debug("Story text generated",
		zap.Int64("storyID", storyID), zap.Int("length", len(text)), zap.Int("totalTokens", usage.TotalTokens))

	pageTexts := SplitIntoPages(text)
	if len(pageTexts) == 0 {
		return 0, errNoPagesGenerated
	}
	prompts := s.deriver.DeriveImagePrompts(ctx, pageTexts)

	err = s.db.WithinTx(ctx, func(tx interfaces.DBTX) error {
		offset := 0
		if s.cfg.PageRegenerationPolicy == config.PageRegenerationReplace {
			deleted, err := s.pageRepo.DeleteByStory(ctx, tx, storyID)
			if err != nil {
				return err
			}
			if deleted > 0 {
				s.logger.Info("Replaced previous pages", zap.Int64("storyID", storyID), zap.Int64("deleted", deleted))
			}
		} else {
			var err error
			if offset, err = s.pageRepo.MaxNumber(ctx, tx, storyID); err != nil {
				return err
			}
		}

		if err := s.storyRepo.Complete(ctx, tx, storyID, text); err != nil {
			return err
		}

		pages := make([]*models.Page, len(pageTexts))
		for i, content := range pageTexts {
			prompt := prompts[i]
			pages[i] = &models.Page{
				StoryID:     storyID,
				Number:      offset + i + 1,
				Content:     content,
				ImagePrompt: &prompt,
			}
		}
		return s.pageRepo.CreateBatch(ctx, tx, pages)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save generated story: %w", err)
	}
	return len(pageTexts), nil
}

// markFailed использует отдельное соединение: контекст задачи может быть уже отменён.
func (s *storyServiceImpl) markFailed(storyID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), markFailedTimeout)
	defer cancel()

	conn, err := s.db.Acquire(ctx)
	if err != nil {
		s.logger.Error("Failed to acquire connection to mark story as failed", zap.Int64("storyID", storyID), zap.Error(err))
		return
	}
	defer conn.Release()

	if err := s.storyRepo.UpdateStatus(ctx, conn, storyID, models.StoryStatusFailed); err != nil {
		s.logger.Error("Failed to mark story as failed", zap.Int64("storyID", storyID), zap.Error(err))
	}
}

func (s *storyServiceImpl) loadOwned(ctx context.Context, user *models.User, id int64, forbiddenMsg string) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db.Querier(), id)
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			return nil, models.WithMessage(models.ErrStoryNotFound, fmt.Sprintf("Story %d not found", id))
		}
		return nil, err
	}
	if !user.CanAccess(story.UserID) {
		return nil, models.WithMessage(models.ErrForbidden, forbiddenMsg)
	}
	return story, nil
}

// mergeGenerationParameters: значение истории приоритетнее, пустые поля заполняются друг из друга.
func mergeGenerationParameters(story *models.Story, params *models.GenerationParameters) {
	if story.Title == "" && params.Title != "" {
		story.Title = params.Title
	}
	if params.Title == "" {
		params.Title = story.Title
	}

	if models.StringValue(story.Theme) == "" && params.Theme != "" {
		theme := params.Theme
		story.Theme = &theme
	}
	if params.Theme == "" || story.Theme != nil {
		params.Theme = models.StringValue(story.Theme)
	}

	if models.StringValue(story.AgeGroup) == "" && params.AgeGroup != "" {
		ageGroup := params.AgeGroup
		story.AgeGroup = &ageGroup
	}
	if params.AgeGroup == "" || story.AgeGroup != nil {
		params.AgeGroup = models.StringValue(story.AgeGroup)
	}
}

func validateLanguage(lang string) error {
	if !config.IsSupportedLanguage(lang) {
		return models.WithMessage(models.ErrUnsupportedLanguage,
			fmt.Sprintf("Language %q is not supported. Supported languages: %s", lang, strings.Join(config.SupportedLanguages, ", ")))
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"
	"aitale-server/internal/taskmanager"

	"go.uber.org/zap"
)

const imageTaskSaveTimeout = 10 * time.Second

// PageService - CRUD страниц и генерация иллюстраций.
type PageService interface {
	ListByStory(ctx context.Context, user *models.User, storyID int64) ([]*models.Page, error)
	Create(ctx context.Context, user *models.User, in models.PageCreate) (*models.Page, error)
	Get(ctx context.Context, user *models.User, id int64) (*models.Page, error)
	Update(ctx context.Context, user *models.User, id int64, upd models.PageUpdate) (*models.Page, error)
	Delete(ctx context.Context, user *models.User, id int64) error
	// GenerateImage возвращает страницу сразу, image_url заполняется в фоне.
	GenerateImage(ctx context.Context, user *models.User, id int64, req models.ImageGenerationRequest) (*models.Page, error)
}

type pageServiceImpl struct {
	db        interfaces.TxManager
	storyRepo interfaces.StoryRepository
	pageRepo  interfaces.PageRepository
	tasks     taskmanager.Submitter
	images    ImageGenerator
	logger    *zap.Logger
}

var _ PageService = (*pageServiceImpl)(nil)

func NewPageService(
	db interfaces.TxManager,
	storyRepo interfaces.StoryRepository,
	pageRepo interfaces.PageRepository,
	tasks taskmanager.Submitter,
	images ImageGenerator,
	logger *zap.Logger,
) PageService {
	return &pageServiceImpl{
		db:        db,
		storyRepo: storyRepo,
		pageRepo:  pageRepo,
		tasks:     tasks,
		images:    images,
		logger:    logger.Named("PageService"),
	}
}

func (s *pageServiceImpl) ListByStory(ctx context.Context, user *models.User, storyID int64) ([]*models.Page, error) {
	if _, err := s.loadStory(ctx, user, storyID, "Not authorized to access this story"); err != nil {
		return nil, err
	}
	return s.pageRepo.ListByStory(ctx, s.db.Querier(), storyID)
}

func (s *pageServiceImpl) Create(ctx context.Context, user *models.User, in models.PageCreate) (*models.Page, error) {
	if _, err := s.loadStory(ctx, user, in.StoryID, "Not authorized to add pages to this story"); err != nil {
		return nil, err
	}
	page := &models.Page{
		StoryID:     in.StoryID,
		Number:      in.Number,
		Content:     in.Content,
		ImagePrompt: in.ImagePrompt,
	}
	if err := s.pageRepo.Create(ctx, s.db.Querier(), page); err != nil {
		if errors.Is(err, models.ErrPageNumberTaken) {
			return nil, models.WithMessage(models.ErrPageNumberTaken,
				fmt.Sprintf("Page number %d already exists in story %d", in.Number, in.StoryID))
		}
		return nil, err
	}
	return page, nil
}

func (s *pageServiceImpl) Get(ctx context.Context, user *models.User, id int64) (*models.Page, error) {
	return s.loadOwned(ctx, user, id, "Not authorized to access this page")
}

func (s *pageServiceImpl) Update(ctx context.Context, user *models.User, id int64, upd models.PageUpdate) (*models.Page, error) {
	page, err := s.loadOwned(ctx, user, id, "Not authorized to modify this page")
	if err != nil {
		return nil, err
	}
	if upd.Content != nil {
		page.Content = *upd.Content
	}
	if upd.ImagePrompt != nil {
		page.ImagePrompt = upd.ImagePrompt
	}
	if upd.ImageURL != nil {
		page.ImageURL = upd.ImageURL
	}
	if err := s.pageRepo.Update(ctx, s.db.Querier(), page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *pageServiceImpl) Delete(ctx context.Context, user *models.User, id int64) error {
	if _, err := s.loadOwned(ctx, user, id, "Not authorized to delete this page"); err != nil {
		return err
	}
	return s.pageRepo.Delete(ctx, s.db.Querier(), id)
}

func (s *pageServiceImpl) GenerateImage(ctx context.Context, user *models.User, id int64, req models.ImageGenerationRequest) (*models.Page, error) {
	log := s.logger.With(zap.Int64("pageID", id), zap.Int64("userID", user.ID))

	page, err := s.loadOwned(ctx, user, id, "Not authorized to generate images for this page")
	if err != nil {
		return nil, err
	}
	req.ApplyDefaults()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt != "" {
		page.ImagePrompt = &prompt
		if err := s.pageRepo.UpdateImagePrompt(ctx, s.db.Querier(), page); err != nil {
			log.Error("Failed to save image prompt", zap.Error(err))
			return nil, err
		}
	} else {
		prompt = strings.TrimSpace(models.StringValue(page.ImagePrompt))
	}
	if prompt == "" {
		return nil, models.WithMessage(models.ErrNoImagePrompt, "No image prompt provided or stored for this page")
	}

	imageReq := ImageRequest{Prompt: prompt, Style: req.Style, Size: req.Size}
	taskID, err := s.tasks.SubmitTask(ctx, fmt.Sprintf("generate-image-%d", page.ID), func(taskCtx context.Context) error {
		return s.runImageGeneration(taskCtx, page.ID, imageReq)
	})
	if err != nil {
		log.Error("Background task was not accepted", zap.Error(err))
		return nil, models.WithMessage(models.ErrTaskQueueFull, msgTaskQueueFull)
	}

	log.Info("Image generation scheduled", zap.String("taskID", taskID.String()))
	return page, nil
}

// runImageGeneration: ошибки только логируются и считаются, страница не меняется.
func (s *pageServiceImpl) runImageGeneration(ctx context.Context, pageID int64, req ImageRequest) error {
	log := s.logger.With(zap.Int64("pageID", pageID))

	result, err := s.images.GenerateImage(ctx, req)
	if err != nil {
		log.Error("Error generating image", zap.Error(err))
		imageGenerationFailures.Inc()
		return err
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageTaskSaveTimeout)
	defer cancel()
	if err := s.pageRepo.UpdateImageURL(saveCtx, s.db.Querier(), pageID, result.FinalURL()); err != nil {
		log.Error("Failed to save image URL", zap.Error(err))
		imageGenerationFailures.Inc()
		return err
	}

	imageGenerationsTotal.Inc()
	log.Info("Page image updated", zap.String("imageURL", result.FinalURL()))
	return nil
}

func (s *pageServiceImpl) loadStory(ctx context.Context, user *models.User, storyID int64, forbiddenMsg string) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db.Querier(), storyID)
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			return nil, models.WithMessage(models.ErrStoryNotFound, fmt.Sprintf("Story %d not found", storyID))
		}
		return nil, err
	}
	if !user.CanAccess(story.UserID) {
		return nil, models.WithMessage(models.ErrForbidden, forbiddenMsg)
	}
	return story, nil
}

// loadOwned загружает страницу и проверяет владельца родительской истории.
func (s *pageServiceImpl) loadOwned(ctx context.Context, user *models.User, id int64, forbiddenMsg string) (*models.Page, error) {
	page, err := s.pageRepo.GetByID(ctx, s.db.Querier(), id)
	if err != nil {
		if errors.Is(err, models.ErrPageNotFound) {
			return nil, models.WithMessage(models.ErrPageNotFound, fmt.Sprintf("Page %d not found", id))
		}
		return nil, err
	}
	story, err := s.storyRepo.GetByID(ctx, s.db.Querier(), page.StoryID)
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			// История удалена между запросами вместе со страницей.
			return nil, models.WithMessage(models.ErrPageNotFound, fmt.Sprintf("Page %d not found", id))
		}
		return nil, err
	}
	if !user.CanAccess(story.UserID) {
		return nil, models.WithMessage(models.ErrForbidden, forbiddenMsg)
	}
	return page, nil
}

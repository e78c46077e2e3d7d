package database

import (
	"context"
	"errors"
	"fmt"

	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	pageColumns = `id, story_id, number, content, image_prompt, image_url, created_at, updated_at`

	createPageQuery = `
        INSERT INTO pages (story_id, number, content, image_prompt, image_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	getPageByIDQuery      = `SELECT ` + pageColumns + ` FROM pages WHERE id = $1`
	listPagesByStoryQuery = `SELECT ` + pageColumns + ` FROM pages WHERE story_id = $1 ORDER BY number, id`
	maxPageNumberQuery    = `SELECT COALESCE(MAX(number), 0) FROM pages WHERE story_id = $1`
	updatePageQuery       = `
        UPDATE pages SET content = $2, image_prompt = $3, image_url = $4
        WHERE id = $1
        RETURNING updated_at`
	updatePageImageURLQuery    = `UPDATE pages SET image_url = $2 WHERE id = $1`
	updatePageImagePromptQuery = `UPDATE pages SET image_prompt = $2 WHERE id = $1 RETURNING updated_at`
	deletePageQuery            = `DELETE FROM pages WHERE id = $1`
	deletePagesByStoryQuery    = `DELETE FROM pages WHERE story_id = $1`
)

var _ interfaces.PageRepository = (*pgPageRepository)(nil)

type pgPageRepository struct {
	logger *zap.Logger
}

// NewPgPageRepository creates a new PostgreSQL-backed PageRepository.
func NewPgPageRepository(logger *zap.Logger) interfaces.PageRepository {
	return &pgPageRepository{logger: logger.Named("PgPageRepo")}
}

func (r *pgPageRepository) Create(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	log := r.logger.With(zap.Int64("storyID", page.StoryID), zap.Int("number", page.Number))

	err := querier.QueryRow(ctx, createPageQuery,
		page.StoryID, page.Number, page.Content, page.ImagePrompt, page.ImageURL,
	).Scan(&page.ID, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			log.Warn("Page number already taken")
			return models.ErrPageNumberTaken
		}
		log.Error("Failed to create page", zap.Error(err))
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

// CreateBatch вставляет страницы по порядку. Ожидается вызов внутри транзакции.
func (r *pgPageRepository) CreateBatch(ctx context.Context, querier interfaces.DBTX, pages []*models.Page) error {
	for _, page := range pages {
		if err := r.Create(ctx, querier, page); err != nil {
			return err
		}
	}
	if len(pages) > 0 {
		r.logger.Info("Pages created", zap.Int64("storyID", pages[0].StoryID), zap.Int("count", len(pages)))
	}
	return nil
}

func (r *pgPageRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.Page, error) {
	var page models.Page
	if err := pgxscan.Get(ctx, querier, &page, getPageByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Page not found", zap.Int64("pageID", id))
			return nil, models.ErrPageNotFound
		}
		r.logger.Error("Failed to get page", zap.Int64("pageID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get page %d: %w", id, err)
	}
	return &page, nil
}

func (r *pgPageRepository) ListByStory(ctx context.Context, querier interfaces.DBTX, storyID int64) ([]*models.Page, error) {
	pages := make([]*models.Page, 0)
	if err := pgxscan.Select(ctx, querier, &pages, listPagesByStoryQuery, storyID); err != nil {
		r.logger.Error("Failed to list pages", zap.Int64("storyID", storyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

func (r *pgPageRepository) MaxNumber(ctx context.Context, querier interfaces.DBTX, storyID int64) (int, error) {
	var maxNumber int
	if err := querier.QueryRow(ctx, maxPageNumberQuery, storyID).Scan(&maxNumber); err != nil {
		return 0, fmt.Errorf("failed to get max page number for story %d: %w", storyID, err)
	}
	return maxNumber, nil
}

func (r *pgPageRepository) Update(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	err := querier.QueryRow(ctx, updatePageQuery,
		page.ID, page.Content, page.ImagePrompt, page.ImageURL,
	).Scan(&page.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrPageNotFound
		}
		r.logger.Error("Failed to update page", zap.Int64("pageID", page.ID), zap.Error(err))
		return fmt.Errorf("failed to update page %d: %w", page.ID, err)
	}
	return nil
}

func (r *pgPageRepository) UpdateImageURL(ctx context.Context, querier interfaces.DBTX, id int64, imageURL string) error {
	cmdTag, err := querier.Exec(ctx, updatePageImageURLQuery, id, imageURL)
	if err != nil {
		r.logger.Error("Failed to update page image url", zap.Int64("pageID", id), zap.Error(err))
		return fmt.Errorf("failed to update image url of page %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrPageNotFound
	}
	return nil
}

func (r *pgPageRepository) UpdateImagePrompt(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	err := querier.QueryRow(ctx, updatePageImagePromptQuery, page.ID, page.ImagePrompt).Scan(&page.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrPageNotFound
		}
		r.logger.Error("Failed to update page image prompt", zap.Int64("pageID", page.ID), zap.Error(err))
		return fmt.Errorf("failed to update image prompt of page %d: %w", page.ID, err)
	}
	return nil
}

func (r *pgPageRepository) Delete(ctx context.Context, querier interfaces.DBTX, id int64) error {
	cmdTag, err := querier.Exec(ctx, deletePageQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete page", zap.Int64("pageID", id), zap.Error(err))
		return fmt.Errorf("failed to delete page %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrPageNotFound
	}
	return nil
}

func (r *pgPageRepository) DeleteByStory(ctx context.Context, querier interfaces.DBTX, storyID int64) (int64, error) {
	cmdTag, err := querier.Exec(ctx, deletePagesByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to delete story pages", zap.Int64("storyID", storyID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete pages of story %d: %w", storyID, err)
	}
	r.logger.Info("Story pages deleted", zap.Int64("storyID", storyID), zap.Int64("count", cmdTag.RowsAffected()))
	return cmdTag.RowsAffected(), nil
}

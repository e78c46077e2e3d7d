package database

import (
	"context"
	"errors"
	"fmt"

	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	storyColumns = `id, user_id, title, description, language, theme, age_group, content, status,
        generation_parameters, created_at, updated_at`

	createStoryQuery = `
        INSERT INTO stories (user_id, title, description, language, theme, age_group, content, status, generation_parameters)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at, updated_at`
	getStoryByIDQuery      = `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	listStoriesByUserQuery = `
        SELECT ` + storyColumns + ` FROM stories
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        OFFSET $2 LIMIT $3`
	updateStoryQuery = `
        UPDATE stories SET
            title = $2, description = $3, language = $4, theme = $5, age_group = $6,
            generation_parameters = $7
        WHERE id = $1
        RETURNING updated_at`
	updateStoryStatusQuery = `UPDATE stories SET status = $2 WHERE id = $1`
	completeStoryQuery     = `UPDATE stories SET content = $2, status = 'completed' WHERE id = $1`
	updateContentQuery     = `UPDATE stories SET content = $2 WHERE id = $1 AND status = 'completed'`
	deleteStoryQuery       = `DELETE FROM stories WHERE id = $1`
)

var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	logger *zap.Logger
}

// NewPgStoryRepository creates a new PostgreSQL-backed StoryRepository.
func NewPgStoryRepository(logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{logger: logger.Named("PgStoryRepo")}
}

func (r *pgStoryRepository) Create(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	log := r.logger.With(zap.Int64("userID", story.UserID), zap.String("title", story.Title))

	params, err := story.GenerationParameters.StringPtr()
	if err != nil {
		return fmt.Errorf("failed to serialize generation parameters: %w", err)
	}

	err = querier.QueryRow(ctx, createStoryQuery,
		story.UserID, story.Title, story.Description, story.Language, story.Theme, story.AgeGroup,
		story.Content, string(story.Status), params,
	).Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		log.Error("Failed to create story", zap.Error(err))
		return fmt.Errorf("failed to create story: %w", err)
	}

	log.Info("Story created", zap.Int64("storyID", story.ID))
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.Story, error) {
	var story models.Story
	if err := pgxscan.Get(ctx, querier, &story, getStoryByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found", zap.Int64("storyID", id))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.Int64("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get story %d: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) ListByUser(ctx context.Context, querier interfaces.DBTX, userID int64, offset, limit int) ([]*models.Story, error) {
	stories := make([]*models.Story, 0)
	if err := pgxscan.Select(ctx, querier, &stories, listStoriesByUserQuery, userID, offset, limit); err != nil {
		r.logger.Error("Failed to list stories", zap.Int64("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

func (r *pgStoryRepository) Update(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	log := r.logger.With(zap.Int64("storyID", story.ID))

	params, err := story.GenerationParameters.StringPtr()
	if err != nil {
		return fmt.Errorf("failed to serialize generation parameters: %w", err)
	}

	err = querier.QueryRow(ctx, updateStoryQuery,
		story.ID, story.Title, story.Description, story.Language, story.Theme, story.AgeGroup, params,
	).Scan(&story.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("Attempted to update non-existent story")
			return models.ErrStoryNotFound
		}
		log.Error("Failed to update story", zap.Error(err))
		return fmt.Errorf("failed to update story %d: %w", story.ID, err)
	}
	log.Debug("Story updated")
	return nil
}

// UpdateContent меняет текст только у завершённой истории.
func (r *pgStoryRepository) UpdateContent(ctx context.Context, querier interfaces.DBTX, id int64, content string) error {
	cmdTag, err := querier.Exec(ctx, updateContentQuery, id, content)
	if err != nil {
		r.logger.Error("Failed to update story content", zap.Int64("storyID", id), zap.Error(err))
		return fmt.Errorf("failed to update content of story %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrContentNotEditable
	}
	return nil
}

func (r *pgStoryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id int64, status models.StoryStatus) error {
	return r.execAffectingOne(ctx, querier, updateStoryStatusQuery, id, string(status))
}

func (r *pgStoryRepository) Complete(ctx context.Context, querier interfaces.DBTX, id int64, content string) error {
	return r.execAffectingOne(ctx, querier, completeStoryQuery, id, content)
}

func (r *pgStoryRepository) Delete(ctx context.Context, querier interfaces.DBTX, id int64) error {
	return r.execAffectingOne(ctx, querier, deleteStoryQuery, id)
}

func (r *pgStoryRepository) execAffectingOne(ctx context.Context, querier interfaces.DBTX, query string, id int64, args ...any) error {
	log := r.logger.With(zap.Int64("storyID", id))
	log.Debug("Executing query", zap.String("query", query))

	cmdTag, err := querier.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		log.Error("Story query failed", zap.Error(err))
		return fmt.Errorf("story query failed for %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		log.Warn("Story not found for update")
		return models.ErrStoryNotFound
	}
	return nil
}

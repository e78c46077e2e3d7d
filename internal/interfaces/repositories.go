package interfaces

import (
	"context"

	"aitale-server/internal/models"
)

// UserRepository defines the interface for user data persistence.
type UserRepository interface {
	// CreateUser inserts a new user and fills its ID and timestamps.
	// Returns models.ErrUserAlreadyExists / models.ErrEmailAlreadyExists on duplicates.
	CreateUser(ctx context.Context, querier DBTX, user *models.User) error

	// GetUserByID returns models.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, querier DBTX, id int64) (*models.User, error)

	GetUserByUsername(ctx context.Context, querier DBTX, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, querier DBTX, email string) (*models.User, error)

	ListUsers(ctx context.Context, querier DBTX, offset, limit int) ([]*models.User, error)

	// UpdateUser persists email, full_name, hashed_password and is_active.
	UpdateUser(ctx context.Context, querier DBTX, user *models.User) error
}

// StoryRepository defines persistence for stories.
type StoryRepository interface {
	Create(ctx context.Context, querier DBTX, story *models.Story) error

	// GetByID returns models.ErrStoryNotFound if the story does not exist.
	GetByID(ctx context.Context, querier DBTX, id int64) (*models.Story, error)

	// ListByUser returns the user's stories, newest first.
	ListByUser(ctx context.Context, querier DBTX, userID int64, offset, limit int) ([]*models.Story, error)

	// Update persists title, description, language, theme, age_group and generation_parameters.
	// Status and content have their own methods.
	Update(ctx context.Context, querier DBTX, story *models.Story) error

	// UpdateContent sets content of a COMPLETED story, models.ErrContentNotEditable otherwise.
	UpdateContent(ctx context.Context, querier DBTX, id int64, content string) error

	// UpdateStatus changes only the status column.
	UpdateStatus(ctx context.Context, querier DBTX, id int64, status models.StoryStatus) error

	// Complete sets content and status COMPLETED.
	Complete(ctx context.Context, querier DBTX, id int64, content string) error

	Delete(ctx context.Context, querier DBTX, id int64) error
}

// PageRepository defines persistence for pages.
type PageRepository interface {
	// Create returns models.ErrPageNumberTaken if (story_id, number) is already used.
	Create(ctx context.Context, querier DBTX, page *models.Page) error

	// CreateBatch inserts pages in order.
	CreateBatch(ctx context.Context, querier DBTX, pages []*models.Page) error

	// GetByID returns models.ErrPageNotFound if the page does not exist.
	GetByID(ctx context.Context, querier DBTX, id int64) (*models.Page, error)

	// ListByStory returns pages ordered by number.
	ListByStory(ctx context.Context, querier DBTX, storyID int64) ([]*models.Page, error)

	// MaxNumber returns the highest page number of the story, 0 if it has none.
	MaxNumber(ctx context.Context, querier DBTX, storyID int64) (int, error)

	Update(ctx context.Context, querier DBTX, page *models.Page) error
	UpdateImageURL(ctx context.Context, querier DBTX, id int64, imageURL string) error
	// UpdateImagePrompt writes only image_prompt and refreshes page.UpdatedAt.
	UpdateImagePrompt(ctx context.Context, querier DBTX, page *models.Page) error

	Delete(ctx context.Context, querier DBTX, id int64) error
	DeleteByStory(ctx context.Context, querier DBTX, storyID int64) (int64, error)
}

// TokenRepository stores issued token ids so they can be revoked.
type TokenRepository interface {
	SetToken(ctx context.Context, userID int64, td *models.TokenDetails) error
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (int64, error)
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (int64, error)
	DeleteTokens(ctx context.Context, userID int64, accessUUID, refreshUUID string) (int64, error)
	DeleteRefreshUUID(ctx context.Context, userID int64, refreshUUID string) error
	DeleteTokensByUserID(ctx context.Context, userID int64) (int64, error)
}

package mocks

import (
	"context"

	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// UserRepository mock
type UserRepository struct {
	mock.Mock
}

var _ interfaces.UserRepository = (*UserRepository)(nil)

func (m *UserRepository) CreateUser(ctx context.Context, querier interfaces.DBTX, user *models.User) error {
	args := m.Called(ctx, querier, user)
	return args.Error(0)
}
func (m *UserRepository) GetUserByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.User, error) {
	args := m.Called(ctx, querier, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetUserByUsername(ctx context.Context, querier interfaces.DBTX, username string) (*models.User, error) {
	args := m.Called(ctx, querier, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetUserByEmail(ctx context.Context, querier interfaces.DBTX, email string) (*models.User, error) {
	args := m.Called(ctx, querier, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) ListUsers(ctx context.Context, querier interfaces.DBTX, offset, limit int) ([]*models.User, error) {
	args := m.Called(ctx, querier, offset, limit)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}
func (m *UserRepository) UpdateUser(ctx context.Context, querier interfaces.DBTX, user *models.User) error {
	args := m.Called(ctx, querier, user)
	return args.Error(0)
}

// StoryRepository mock
type StoryRepository struct {
	mock.Mock
}

var _ interfaces.StoryRepository = (*StoryRepository)(nil)

func (m *StoryRepository) Create(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	args := m.Called(ctx, querier, story)
	return args.Error(0)
}
func (m *StoryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.Story, error) {
	args := m.Called(ctx, querier, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) ListByUser(ctx context.Context, querier interfaces.DBTX, userID int64, offset, limit int) ([]*models.Story, error) {
	args := m.Called(ctx, querier, userID, offset, limit)
	stories, _ := args.Get(0).([]*models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) Update(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	args := m.Called(ctx, querier, story)
	return args.Error(0)
}
func (m *StoryRepository) UpdateContent(ctx context.Context, querier interfaces.DBTX, id int64, content string) error {
	args := m.Called(ctx, querier, id, content)
	return args.Error(0)
}
func (m *StoryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id int64, status models.StoryStatus) error {
	args := m.Called(ctx, querier, id, status)
	return args.Error(0)
}
func (m *StoryRepository) Complete(ctx context.Context, querier interfaces.DBTX, id int64, content string) error {
	args := m.Called(ctx, querier, id, content)
	return args.Error(0)
}
func (m *StoryRepository) Delete(ctx context.Context, querier interfaces.DBTX, id int64) error {
	args := m.Called(ctx, querier, id)
	return args.Error(0)
}

// PageRepository mock
type PageRepository struct {
	mock.Mock
}

var _ interfaces.PageRepository = (*PageRepository)(nil)

func (m *PageRepository) Create(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	args := m.Called(ctx, querier, page)
	return args.Error(0)
}
func (m *PageRepository) CreateBatch(ctx context.Context, querier interfaces.DBTX, pages []*models.Page) error {
	args := m.Called(ctx, querier, pages)
	return args.Error(0)
}
func (m *PageRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.Page, error) {
	args := m.Called(ctx, querier, id)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}
func (m *PageRepository) ListByStory(ctx context.Context, querier interfaces.DBTX, storyID int64) ([]*models.Page, error) {
	args := m.Called(ctx, querier, storyID)
	pages, _ := args.Get(0).([]*models.Page)
	return pages, args.Error(1)
}
func (m *PageRepository) MaxNumber(ctx context.Context, querier interfaces.DBTX, storyID int64) (int, error) {
	args := m.Called(ctx, querier, storyID)
	return args.Int(0), args.Error(1)
}
func (m *PageRepository) Update(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	args := m.Called(ctx, querier, page)
	return args.Error(0)
}
func (m *PageRepository) UpdateImageURL(ctx context.Context, querier interfaces.DBTX, id int64, imageURL string) error {
	args := m.Called(ctx, querier, id, imageURL)
	return args.Error(0)
}
func (m *PageRepository) UpdateImagePrompt(ctx context.Context, querier interfaces.DBTX, page *models.Page) error {
	args := m.Called(ctx, querier, page)
	return args.Error(0)
}
func (m *PageRepository) Delete(ctx context.Context, querier interfaces.DBTX, id int64) error {
	args := m.Called(ctx, querier, id)
	return args.Error(0)
}
func (m *PageRepository) DeleteByStory(ctx context.Context, querier interfaces.DBTX, storyID int64) (int64, error) {
	args := m.Called(ctx, querier, storyID)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// TokenRepository mock
type TokenRepository struct {
	mock.Mock
}

var _ interfaces.TokenRepository = (*TokenRepository)(nil)

func (m *TokenRepository) SetToken(ctx context.Context, userID int64, td *models.TokenDetails) error {
	args := m.Called(ctx, userID, td)
	return args.Error(0)
}
func (m *TokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (int64, error) {
	args := m.Called(ctx, accessUUID)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}
func (m *TokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (int64, error) {
	args := m.Called(ctx, refreshUUID)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}
func (m *TokenRepository) DeleteTokens(ctx context.Context, userID int64, accessUUID, refreshUUID string) (int64, error) {
	args := m.Called(ctx, userID, accessUUID, refreshUUID)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}
func (m *TokenRepository) DeleteRefreshUUID(ctx context.Context, userID int64, refreshUUID string) error {
	args := m.Called(ctx, userID, refreshUUID)
	return args.Error(0)
}
func (m *TokenRepository) DeleteTokensByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

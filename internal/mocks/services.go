package mocks

import (
	"context"

	"aitale-server/internal/models"
	"aitale-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// AuthService mock
type AuthService struct {
	mock.Mock
}

var _ service.AuthService = (*AuthService)(nil)

func (m *AuthService) Register(ctx context.Context, username, email, password string, fullName *string) (*models.User, error) {
	args := m.Called(ctx, username, email, password, fullName)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *AuthService) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	args := m.Called(ctx, username, password)
	td, _ := args.Get(0).(*models.TokenDetails)
	return td, args.Error(1)
}
func (m *AuthService) Logout(ctx context.Context, userID int64, accessUUID, refreshToken string) error {
	args := m.Called(ctx, userID, accessUUID, refreshToken)
	return args.Error(0)
}
func (m *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	args := m.Called(ctx, refreshToken)
	td, _ := args.Get(0).(*models.TokenDetails)
	return td, args.Error(1)
}
func (m *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	args := m.Called(ctx, tokenString)
	claims, _ := args.Get(0).(*models.Claims)
	return claims, args.Error(1)
}

// UserService mock
type UserService struct {
	mock.Mock
}

var _ service.UserService = (*UserService)(nil)

func (m *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserService) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	args := m.Called(ctx, offset, limit)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}
func (m *UserService) UpdateMe(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, user, upd)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}
func (m *UserService) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}

// StoryService mock
type StoryService struct {
	mock.Mock
}

var _ service.StoryService = (*StoryService)(nil)

func (m *StoryService) Create(ctx context.Context, user *models.User, in models.StoryCreate) (*models.Story, error) {
	args := m.Called(ctx, user, in)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) Get(ctx context.Context, user *models.User, id int64) (*models.Story, error) {
	args := m.Called(ctx, user, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) List(ctx context.Context, user *models.User, offset, limit int) ([]*models.Story, error) {
	args := m.Called(ctx, user, offset, limit)
	stories, _ := args.Get(0).([]*models.Story)
	return stories, args.Error(1)
}
func (m *StoryService) Update(ctx context.Context, user *models.User, id int64, upd models.StoryUpdate) (*models.Story, error) {
	args := m.Called(ctx, user, id, upd)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) Delete(ctx context.Context, user *models.User, id int64) error {
	args := m.Called(ctx, user, id)
	return args.Error(0)
}
func (m *StoryService) GenerateStory(ctx context.Context, user *models.User, id int64, params models.GenerationParameters) (*models.Story, error) {
	args := m.Called(ctx, user, id, params)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

// PageService mock
type PageService struct {
	mock.Mock
}

var _ service.PageService = (*PageService)(nil)

func (m *PageService) ListByStory(ctx context.Context, user *models.User, storyID int64) ([]*models.Page, error) {
	args := m.Called(ctx, user, storyID)
	pages, _ := args.Get(0).([]*models.Page)
	return pages, args.Error(1)
}
func (m *PageService) Create(ctx context.Context, user *models.User, in models.PageCreate) (*models.Page, error) {
	args := m.Called(ctx, user, in)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}
func (m *PageService) Get(ctx context.Context, user *models.User, id int64) (*models.Page, error) {
	args := m.Called(ctx, user, id)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}
func (m *PageService) Update(ctx context.Context, user *models.User, id int64, upd models.PageUpdate) (*models.Page, error) {
	args := m.Called(ctx, user, id, upd)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}
func (m *PageService) Delete(ctx context.Context, user *models.User, id int64) error {
	args := m.Called(ctx, user, id)
	return args.Error(0)
}
func (m *PageService) GenerateImage(ctx context.Context, user *models.User, id int64, req models.ImageGenerationRequest) (*models.Page, error) {
	args := m.Called(ctx, user, id, req)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}

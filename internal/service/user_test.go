package service_test

import (
	"context"
	"testing"

	"aitale-server/internal/config"
	"aitale-server/internal/mocks"
	"aitale-server/internal/models"
	"aitale-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService() (service.UserService, *mocks.UserRepository, *mocks.TokenRepository) {
	users := &mocks.UserRepository{}
	tokens := &mocks.TokenRepository{}
	svc := service.NewUserService(&mocks.TxManager{}, users, tokens, &config.Config{PasswordPepper: "p"}, zap.NewNop())
	return svc, users, tokens
}

func TestUserService_GetByIDNotFound(t *testing.T) {
	svc, users, _ := newUserService()
	users.On("GetUserByID", mock.Anything, mock.Anything, int64(42)).Return(nil, models.ErrUserNotFound)

	_, err := svc.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.Equal(t, "User 42 not found", err.Error())
}

func TestUserService_UpdateMeIgnoresIsActive(t *testing.T) {
	svc, users, tokens := newUserService()
	stored := &models.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true, HashedPassword: "old"}
	users.On("GetUserByID", mock.Anything, mock.Anything, int64(1)).Return(stored, nil)
	users.On("GetUserByEmail", mock.Anything, mock.Anything, "new@example.com").Return(nil, models.ErrUserNotFound)
	users.On("UpdateUser", mock.Anything, mock.Anything, stored).Return(nil).Once()

	inactive := false
	email, password, name := "New@Example.com", "newpassword", "Alice A."
	updated, err := svc.UpdateMe(context.Background(), &models.User{ID: 1}, models.UserUpdate{
		Email: &email, Password: &password, FullName: &name, IsActive: &inactive,
	})
	require.NoError(t, err)

	assert.True(t, updated.IsActive)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "Alice A.", *updated.FullName)
	assert.NotEqual(t, "old", updated.HashedPassword)
	tokens.AssertNotCalled(t, "DeleteTokensByUserID", mock.Anything, mock.Anything)
	users.AssertExpectations(t)
}

func TestUserService_AdminDeactivationRevokesTokens(t *testing.T) {
	svc, users, tokens := newUserService()
	stored := &models.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true}
	users.On("GetUserByID", mock.Anything, mock.Anything, int64(1)).Return(stored, nil)
	users.On("UpdateUser", mock.Anything, mock.Anything, stored).Return(nil).Once()
	tokens.On("DeleteTokensByUserID", mock.Anything, int64(1)).Return(int64(4), nil).Once()

	inactive := false
	updated, err := svc.UpdateUser(context.Background(), 1, models.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	tokens.AssertExpectations(t)
}

func TestUserService_UpdateValidation(t *testing.T) {
	svc, users, _ := newUserService()
	stored := &models.User{ID: 1, Email: "alice@example.com", IsActive: true}
	users.On("GetUserByID", mock.Anything, mock.Anything, int64(1)).Return(stored, nil)
	users.On("GetUserByEmail", mock.Anything, mock.Anything, "taken@example.com").Return(&models.User{ID: 2}, nil)

	short := "short"
	_, err := svc.UpdateUser(context.Background(), 1, models.UserUpdate{Password: &short})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	taken := "taken@example.com"
	_, err = svc.UpdateUser(context.Background(), 1, models.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)

	users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"aitale-server/internal/config"
	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 100
)

// UserService - профиль пользователя и администрирование.
type UserService interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	// UpdateMe обновляет собственный профиль. IsActive игнорируется.
	UpdateMe(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error)
	// UpdateUser - обновление администратором, может менять is_active.
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
}

type userServiceImpl struct {
	db        interfaces.TxManager
	userRepo  interfaces.UserRepository
	tokenRepo interfaces.TokenRepository
	cfg       *config.Config
	logger    *zap.Logger
}

var _ UserService = (*userServiceImpl)(nil)

func NewUserService(db interfaces.TxManager, userRepo interfaces.UserRepository, tokenRepo interfaces.TokenRepository, cfg *config.Config, logger *zap.Logger) UserService {
	return &userServiceImpl{
		db:        db,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		cfg:       cfg,
		logger:    logger.Named("UserService"),
	}
}

func (s *userServiceImpl) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, s.db.Querier(), id)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.WithMessage(models.ErrUserNotFound, fmt.Sprintf("User %d not found", id))
		}
		return nil, err
	}
	return user, nil
}

func (s *userServiceImpl) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	return s.userRepo.ListUsers(ctx, s.db.Querier(), offset, limit)
}

func (s *userServiceImpl) UpdateMe(ctx context.Context, user *models.User, upd models.UserUpdate) (*models.User, error) {
	upd.IsActive = nil
	return s.update(ctx, user.ID, upd)
}

func (s *userServiceImpl) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	return s.update(ctx, id, upd)
}

func (s *userServiceImpl) update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	log := s.logger.With(zap.Int64("userID", id))
	querier := s.db.Querier()

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			if _, err := s.userRepo.GetUserByEmail(ctx, querier, email); err == nil {
				return nil, models.WithMessage(models.ErrEmailAlreadyExists, "The user with this email already exists in the system")
			} else if !errors.Is(err, models.ErrUserNotFound) {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			user.Email = email
		}
	}
	if upd.FullName != nil {
		user.FullName = upd.FullName
	}
	if upd.Password != nil {
		if err := ValidatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hashed, err := hashPassword(*upd.Password, s.cfg.PasswordPepper)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = hashed
	}
	deactivated := false
	if upd.IsActive != nil {
		deactivated = user.IsActive && !*upd.IsActive
		user.IsActive = *upd.IsActive
	}

	if err := s.userRepo.UpdateUser(ctx, querier, user); err != nil {
		log.Error("Failed to update user", zap.Error(err))
		return nil, err
	}

	// Деактивированный пользователь теряет все выданные токены.
	if deactivated {
		deleted, err := s.tokenRepo.DeleteTokensByUserID(ctx, id)
		if err != nil {
			log.Error("Failed to delete tokens of deactivated user", zap.Error(err))
		} else {
			log.Info("Deleted tokens of deactivated user", zap.Int64("deletedCount", deleted))
		}
	}

	log.Info("User updated")
	return user, nil
}

// ValidatePassword checks the allowed password length.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return models.WithMessage(models.ErrInvalidInput,
			fmt.Sprintf("Password must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}
	return nil
}

package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"aitale-server/internal/config"
	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "aitale-server"

// AuthService - регистрация, логин и проверка токенов.
type AuthService interface {
	Register(ctx context.Context, username, email, password string, fullName *string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.TokenDetails, error)
	Logout(ctx context.Context, userID int64, accessUUID, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)
	VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

type authServiceImpl struct {
	db        interfaces.TxManager
	userRepo  interfaces.UserRepository
	tokenRepo interfaces.TokenRepository
	cfg       *config.Config
	logger    *zap.Logger
}

var _ AuthService = (*authServiceImpl)(nil)

// NewAuthService creates a new authentication service.
func NewAuthService(db interfaces.TxManager, userRepo interfaces.UserRepository, tokenRepo interfaces.TokenRepository, cfg *config.Config, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		db:        db,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		cfg:       cfg,
		logger:    logger.Named("AuthService"),
	}
}

func (s *authServiceImpl) Register(ctx context.Context, username, email, password string, fullName *string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("username", username), zap.String("email", email))
	log.Info("Registering user")

	querier := s.db.Querier()

	// Проверяем дубликаты заранее, чтобы вернуть понятную ошибку.
	// Уникальные индексы в БД всё равно страхуют от гонки.
	if _, err := s.userRepo.GetUserByUsername(ctx, querier, username); err == nil {
		log.Warn("Username already exists")
		return nil, models.WithMessage(models.ErrUserAlreadyExists, "The user with this username already exists in the system")
	} else if !errors.Is(err, models.ErrUserNotFound) {
		log.Error("Error checking username existence", zap.Error(err))
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.userRepo.GetUserByEmail(ctx, querier, email); err == nil {
		log.Warn("Email already exists")
		return nil, models.WithMessage(models.ErrEmailAlreadyExists, "The user with this email already exists in the system")
	} else if !errors.Is(err, models.ErrUserNotFound) {
		log.Error("Error checking email existence", zap.Error(err))
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := hashPassword(password, s.cfg.PasswordPepper)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// is_active/is_superuser клиент не задаёт.
	user := &models.User{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := s.userRepo.CreateUser(ctx, querier, user); err != nil {
		log.Error("Failed to create user", zap.Error(err))
		return nil, err
	}

	log.Info("User registered", zap.Int64("userID", user.ID))
	return user, nil
}

func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	log := s.logger.With(zap.String("username", username))

	user, err := s.userRepo.GetUserByUsername(ctx, s.db.Querier(), username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("Login attempt for unknown user")
			return nil, models.WithMessage(models.ErrInvalidCredentials, "Incorrect username or password")
		}
		log.Error("Error fetching user for login", zap.Error(err))
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !checkPasswordHash(password, s.cfg.PasswordPepper, user.HashedPassword) {
		log.Warn("Invalid password")
		return nil, models.WithMessage(models.ErrInvalidCredentials, "Incorrect username or password")
	}
	if !user.IsActive {
		log.Warn("Login attempt for inactive user", zap.Int64("userID", user.ID))
		return nil, models.WithMessage(models.ErrInactiveUser, "Inactive user")
	}

	td, err := s.createTokens(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.SetToken(ctx, user.ID, td); err != nil {
		log.Error("Failed to save tokens", zap.Error(err))
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}

	log.Info("User logged in", zap.Int64("userID", user.ID))
	return td, nil
}

// Logout отзывает access токен и, если передан, refresh токен.
func (s *authServiceImpl) Logout(ctx context.Context, userID int64, accessUUID, refreshToken string) error {
	log := s.logger.With(zap.Int64("userID", userID))

	var refreshUUID string
	if refreshToken != "" {
		claims, err := s.parseToken(refreshToken)
		if err != nil {
			log.Warn("Ignoring invalid refresh token on logout", zap.Error(err))
		} else if claims.UserID == userID {
			refreshUUID = claims.ID
		}
	}

	deleted, err := s.tokenRepo.DeleteTokens(ctx, userID, accessUUID, refreshUUID)
	if err != nil {
		log.Error("Failed to delete tokens", zap.Error(err))
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	log.Info("User logged out", zap.Int64("deletedCount", deleted))
	return nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.Int64("userID", claims.UserID), zap.String("refreshUUID", claims.ID))

	userID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			log.Warn("Refresh token not found in store")
			return nil, models.ErrTokenInvalid
		}
		log.Error("Failed to check refresh token", zap.Error(err))
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if userID != claims.UserID {
		log.Warn("Refresh token user mismatch", zap.Int64("storedUserID", userID))
		return nil, models.ErrTokenInvalid
	}

	user, err := s.userRepo.GetUserByID(ctx, s.db.Querier(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, models.WithMessage(models.ErrInactiveUser, "Inactive user")
	}

	td, err := s.createTokens(user)
	if err != nil {
		return nil, err
	}

	// Старый refresh токен одноразовый. Ошибка удаления не критична.
	if err := s.tokenRepo.DeleteRefreshUUID(ctx, userID, claims.ID); err != nil {
		log.Warn("Failed to delete old refresh token", zap.Error(err))
	}
	if err := s.tokenRepo.SetToken(ctx, userID, td); err != nil {
		log.Error("Failed to save refreshed tokens", zap.Error(err))
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}

	log.Info("Tokens refreshed")
	return td, nil
}

// VerifyAccessToken проверяет подпись, срок и наличие токена в хранилище.
func (s *authServiceImpl) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := s.tokenRepo.GetUserIDByAccessUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("Failed to check access token", zap.Error(err), zap.String("accessUUID", claims.ID))
		return nil, fmt.Errorf("failed to check access token: %w", err)
	}
	if userID != claims.UserID {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func (s *authServiceImpl) parseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrTokenMalformed
		default:
			return nil, models.ErrTokenInvalid
		}
	}
	if !token.Valid || claims.ID == "" || claims.UserID == 0 {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func (s *authServiceImpl) createTokens(user *models.User) (*models.TokenDetails, error) {
	now := time.Now()
	td := &models.TokenDetails{
		TokenType:   "bearer",
		AccessUUID:  uuid.NewString(),
		RefreshUUID: uuid.NewString(),
		AtExpires:   now.Add(s.cfg.AccessTokenTTL).Unix(),
		RtExpires:   now.Add(s.cfg.RefreshTokenTTL).Unix(),
	}

	var err error
	td.AccessToken, err = s.signToken(user, td.AccessUUID, td.AtExpires, now)
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err), zap.Int64("userID", user.ID))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	td.RefreshToken, err = s.signToken(user, td.RefreshUUID, td.RtExpires, now)
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.Error(err), zap.Int64("userID", user.ID))
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return td, nil
}

func (s *authServiceImpl) signToken(user *models.User, id string, expires int64, now time.Time) (string, error) {
	claims := &models.Claims{
		UserID: user.ID,
		Roles:  user.Roles(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(time.Unix(expires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// normalizeEmail приводит email к нижнему регистру и проверяет формат.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", models.WithMessage(models.ErrInvalidInput, "Invalid email address")
	}
	return email, nil
}

// applyPepper mixes the server-side pepper into the password before bcrypt.
// HMAC keeps the input at a fixed 64 chars, below the bcrypt 72 byte limit.
func applyPepper(password, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

func hashPassword(password, pepper string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(applyPepper(password, pepper)), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, pepper, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(applyPepper(password, pepper)))
	return err == nil
}

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
	pgUniqueViolation = "23505"

	userColumns = `id, email, username, full_name, hashed_password, is_active, is_superuser, created_at, updated_at`

	createUserQuery = `
        INSERT INTO users (email, username, full_name, hashed_password, is_active, is_superuser)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	getUserByIDQuery       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	getUserByEmailQuery    = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	listUsersQuery         = `SELECT ` + userColumns + ` FROM users ORDER BY id OFFSET $1 LIMIT $2`
	updateUserQuery        = `
        UPDATE users SET email = $2, full_name = $3, hashed_password = $4, is_active = $5
        WHERE id = $1
        RETURNING updated_at`
)

var _ interfaces.UserRepository = (*pgUserRepository)(nil)

type pgUserRepository struct {
	logger *zap.Logger
}

// NewPgUserRepository creates a new PostgreSQL-backed UserRepository.
func NewPgUserRepository(logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{logger: logger.Named("PgUserRepo")}
}

func (r *pgUserRepository) CreateUser(ctx context.Context, querier interfaces.DBTX, user *models.User) error {
	logFields := []zap.Field{zap.String("username", user.Username), zap.String("email", user.Email)}
	r.logger.Debug("Executing query", append(logFields, zap.String("query", "createUser"))...)

	err := querier.QueryRow(ctx, createUserQuery,
		user.Email, user.Username, user.FullName, user.HashedPassword, user.IsActive, user.IsSuperuser,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dupErr := mapUserUniqueViolation(err); dupErr != nil {
			r.logger.Warn("Attempted to create duplicate user", append(logFields, zap.Error(dupErr))...)
			return dupErr
		}
		r.logger.Error("Failed to create user in postgres", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create user in postgres: %w", err)
	}

	r.logger.Info("User created successfully", append(logFields, zap.Int64("userID", user.ID))...)
	return nil
}

func (r *pgUserRepository) GetUserByID(ctx context.Context, querier interfaces.DBTX, id int64) (*models.User, error) {
	return r.getOne(ctx, querier, getUserByIDQuery, id, zap.Int64("userID", id))
}

func (r *pgUserRepository) GetUserByUsername(ctx context.Context, querier interfaces.DBTX, username string) (*models.User, error) {
	return r.getOne(ctx, querier, getUserByUsernameQuery, username, zap.String("username", username))
}

func (r *pgUserRepository) GetUserByEmail(ctx context.Context, querier interfaces.DBTX, email string) (*models.User, error) {
	return r.getOne(ctx, querier, getUserByEmailQuery, email, zap.String("email", email))
}

func (r *pgUserRepository) getOne(ctx context.Context, querier interfaces.DBTX, query string, arg any, field zap.Field) (*models.User, error) {
	var user models.User
	if err := pgxscan.Get(ctx, querier, &user, query, arg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found", field)
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user from postgres", field, zap.Error(err))
		return nil, fmt.Errorf("failed to get user from postgres: %w", err)
	}
	return &user, nil
}

func (r *pgUserRepository) ListUsers(ctx context.Context, querier interfaces.DBTX, offset, limit int) ([]*models.User, error) {
	users := make([]*models.User, 0)
	if err := pgxscan.Select(ctx, querier, &users, listUsersQuery, offset, limit); err != nil {
		r.logger.Error("Failed to list users", zap.Int("offset", offset), zap.Int("limit", limit), zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) UpdateUser(ctx context.Context, querier interfaces.DBTX, user *models.User) error {
	log := r.logger.With(zap.Int64("userID", user.ID))

	err := querier.QueryRow(ctx, updateUserQuery,
		user.ID, user.Email, user.FullName, user.HashedPassword, user.IsActive,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("Attempted to update non-existent user")
			return models.ErrUserNotFound
		}
		if dupErr := mapUserUniqueViolation(err); dupErr != nil {
			log.Warn("Attempted to update user with duplicate value", zap.Error(dupErr))
			return dupErr
		}
		log.Error("Failed to update user", zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}

	log.Info("User updated successfully")
	return nil
}

// mapUserUniqueViolation returns the domain error for a duplicate username/email, or nil.
func mapUserUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return models.ErrEmailAlreadyExists
	default:
		return models.ErrUserAlreadyExists
	}
}

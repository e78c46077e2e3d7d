package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aitale-server/internal/config"
	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Ключи:
//
//	access_uuid:{uuid}  -> userID (TTL access токена)
//	refresh_uuid:{uuid} -> userID (TTL refresh токена)
//	user_tokens:{userID} -> set {"access:{uuid}", "refresh:{uuid}"}
const (
	accessKeyPrefix  = "access_uuid:"
	refreshKeyPrefix = "refresh_uuid:"
	userTokensPrefix = "user_tokens:"
)

var _ interfaces.TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a new Redis-backed TokenRepository.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) interfaces.TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

// ConnectRedis создает клиента Redis и проверяет соединение.
func ConnectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			logger.Info("Successfully connected and pinged Redis", zap.String("address", cfg.RedisAddr), zap.Int("attempt", attempt))
			return client, nil
		}
		logger.Warn("Redis ping failed, retrying...", zap.Int("attempt", attempt), zap.Error(lastErr))

		select {
		case <-ctx.Done():
			client.Close()
			return nil, fmt.Errorf("redis connection aborted: %w", ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", connectMaxRetries, lastErr)
}

func userTokensKey(userID int64) string {
	return userTokensPrefix + strconv.FormatInt(userID, 10)
}

// SetToken stores both token ids with their TTLs and indexes them in the user's set.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID int64, td *models.TokenDetails) error {
	now := time.Now()
	accessTTL := time.Unix(td.AtExpires, 0).Sub(now)
	refreshTTL := time.Unix(td.RtExpires, 0).Sub(now)
	userIDStr := strconv.FormatInt(userID, 10)

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, accessKeyPrefix+td.AccessUUID, userIDStr, accessTTL)
	pipe.Set(ctx, refreshKeyPrefix+td.RefreshUUID, userIDStr, refreshTTL)
	pipe.SAdd(ctx, userTokensKey(userID), "access:"+td.AccessUUID, "refresh:"+td.RefreshUUID)
	// Set живет не дольше самого долгого токена
	pipe.Expire(ctx, userTokensKey(userID), refreshTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set token details in redis", zap.Int64("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to set token details in redis: %w", err)
	}

	r.logger.Debug("Tokens stored",
		zap.Int64("userID", userID),
		zap.String("accessUUID", td.AccessUUID),
		zap.Duration("accessTTL", accessTTL),
		zap.Duration("refreshTTL", refreshTTL),
	)
	return nil
}

func (r *redisTokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (int64, error) {
	return r.getUserID(ctx, accessKeyPrefix+accessUUID)
}

func (r *redisTokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (int64, error) {
	return r.getUserID(ctx, refreshKeyPrefix+refreshUUID)
}

func (r *redisTokenRepository) getUserID(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Token not found in Redis", zap.String("key", key))
			return 0, models.ErrTokenNotFound
		}
		r.logger.Error("Failed to get token from redis", zap.String("key", key), zap.Error(err))
		return 0, fmt.Errorf("failed to get token from redis: %w", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.logger.Error("Corrupted userID in redis", zap.String("key", key), zap.String("value", value))
		return 0, fmt.Errorf("corrupted userID data in redis for %s: %w", key, err)
	}
	return userID, nil
}

// DeleteTokens removes the given token ids. Empty ids are skipped.
func (r *redisTokenRepository) DeleteTokens(ctx context.Context, userID int64, accessUUID, refreshUUID string) (int64, error) {
	var keys []string
	var members []any
	if accessUUID != "" {
		keys = append(keys, accessKeyPrefix+accessUUID)
		members = append(members, "access:"+accessUUID)
	}
	if refreshUUID != "" {
		keys = append(keys, refreshKeyPrefix+refreshUUID)
		members = append(members, "refresh:"+refreshUUID)
	}
	if len(keys) == 0 {
		r.logger.Warn("DeleteTokens called with no UUIDs", zap.Int64("userID", userID))
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	delCmd := pipe.Del(ctx, keys...)
	pipe.SRem(ctx, userTokensKey(userID), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete tokens", zap.Int64("userID", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}

	deleted := delCmd.Val()
	r.logger.Info("Tokens deleted", zap.Int64("userID", userID), zap.Int64("deletedCount", deleted))
	return deleted, nil
}

func (r *redisTokenRepository) DeleteRefreshUUID(ctx context.Context, userID int64, refreshUUID string) error {
	_, err := r.DeleteTokens(ctx, userID, "", refreshUUID)
	return err
}

// DeleteTokensByUserID revokes every token of the user, e.g. after deactivation.
func (r *redisTokenRepository) DeleteTokensByUserID(ctx context.Context, userID int64) (int64, error) {
	setKey := userTokensKey(userID)
	log := r.logger.With(zap.Int64("userID", userID))

	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Error("Failed to read user token set", zap.Error(err))
		return 0, fmt.Errorf("failed to read token set for user %d: %w", userID, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		switch {
		case strings.HasPrefix(m, "access:"):
			keys = append(keys, accessKeyPrefix+strings.TrimPrefix(m, "access:"))
		case strings.HasPrefix(m, "refresh:"):
			keys = append(keys, refreshKeyPrefix+strings.TrimPrefix(m, "refresh:"))
		default:
			log.Warn("Unknown member in user token set", zap.String("member", m))
		}
	}

	pipe := r.client.TxPipeline()
	var delCmd *redis.IntCmd
	if len(keys) > 0 {
		delCmd = pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error("Failed to delete user tokens", zap.Error(err))
		return 0, fmt.Errorf("failed to delete tokens for user %d: %w", userID, err)
	}

	var deleted int64
	if delCmd != nil {
		deleted = delCmd.Val()
	}
	log.Info("All user tokens deleted", zap.Int64("deletedCount", deleted))
	return deleted, nil
}

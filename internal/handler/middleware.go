package handler

import (
	"errors"
	"strconv"
	"strings"

	"aitale-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware проверяет Bearer токен и кладёт активного пользователя в контекст.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.logger.Debug("Missing or malformed Authorization header")
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			handleServiceError(c, models.ErrTokenInvalid)
			return
		}

		claims, err := h.authService.VerifyAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			h.logger.Warn("Access token verification failed", zap.Error(err))
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			handleServiceError(c, err)
			return
		}
		tokenVerificationsTotal.WithLabelValues("access", "success").Inc()

		user, err := h.loadUser(c, claims.UserID)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				handleServiceError(c, models.WithMessage(models.ErrUserNotFound, "User not found"))
				return
			}
			handleServiceError(c, err)
			return
		}
		if !user.IsActive {
			handleServiceError(c, models.WithMessage(models.ErrInactiveUser, "Inactive user"))
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxAccessUUIDKey, claims.ID)
		c.Next()
	}
}

// loadUser читает пользователя через короткоживущий кэш.
func (h *Handler) loadUser(c *gin.Context, userID int64) (*models.User, error) {
	key := strconv.FormatInt(userID, 10)
	if cached, found := h.userCache.Get(key); found {
		userCacheLookupsTotal.WithLabelValues("hit").Inc()
		user := *cached.(*models.User)
		return &user, nil
	}
	userCacheLookupsTotal.WithLabelValues("miss").Inc()

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	h.userCache.SetDefault(key, user)
	copied := *user
	return &copied, nil
}

func (h *Handler) invalidateUser(userID int64) {
	h.userCache.Delete(strconv.FormatInt(userID, 10))
}

// requireSuperuser must run after AuthMiddleware.
func (h *Handler) requireSuperuser(c *gin.Context) {
	if !currentUser(c).IsSuperuser {
		handleServiceError(c, models.WithMessage(models.ErrForbidden, "Not enough privileges"))
		return
	}
	c.Next()
}

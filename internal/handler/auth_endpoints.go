package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"unicode/utf8"

	"aitale-server/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateUsername returns a client message, empty when the username is valid.
func validateUsername(username string) string {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return fmt.Sprintf("Username length must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return "Username can only contain letters, numbers, underscores, and hyphens"
	}
	return ""
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	if msg := validateUsername(req.Username); msg != "" {
		badRequest(c, msg)
		return
	}
	if err := service.ValidatePassword(req.Password); err != nil {
		handleServiceError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	registrationsTotal.Inc()
	c.JSON(http.StatusCreated, user)
}

// login accepts JSON or an OAuth2 password form (application/x-www-form-urlencoded).
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		tokenVerificationsTotal.WithLabelValues("refresh", "failure").Inc()
		handleServiceError(c, err)
		return
	}
	tokenVerificationsTotal.WithLabelValues("refresh", "success").Inc()
	refreshesTotal.Inc()
	c.JSON(http.StatusOK, tokens)
}

// logout отзывает текущий access токен; refresh_token в теле необязателен.
func (h *Handler) logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	user := currentUser(c)
	if err := h.authService.Logout(c.Request.Context(), user.ID, c.GetString(ctxAccessUUIDKey), req.RefreshToken); err != nil {
		handleServiceError(c, err)
		return
	}
	h.invalidateUser(user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

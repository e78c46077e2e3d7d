package handler

import (
	"net/http"

	"aitale-server/internal/models"

	"github.com/gin-gonic/gin"
)

// selfUpdateRequest - поля, которые пользователь меняет сам.
type selfUpdateRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

func (h *Handler) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req selfUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	user := currentUser(c)
	updated, err := h.userService.UpdateMe(c.Request.Context(), user, models.UserUpdate{
		Email: req.Email, FullName: req.FullName, Password: req.Password,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.invalidateUser(user.ID)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) listUsers(c *gin.Context) {
	offset, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	users, err := h.userService.List(c.Request.Context(), offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// getUser: пользователь видит себя, суперпользователь - любого.
func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)
	if user.ID == id {
		c.JSON(http.StatusOK, user)
		return
	}
	if !user.IsSuperuser {
		handleServiceError(c, models.WithMessage(models.ErrForbidden, "Not enough privileges"))
		return
	}

	found, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}

	updated, err := h.userService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.invalidateUser(id)
	c.JSON(http.StatusOK, updated)
}

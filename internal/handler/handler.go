package handler

import (
	"net/http"
	"strconv"
	"time"

	"aitale-server/internal/config"
	"aitale-server/internal/models"
	"aitale-server/internal/service"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	ctxUserKey       = "user"
	ctxAccessUUIDKey = "access_uuid"

	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Handler обслуживает публичный HTTP API.
type Handler struct {
	authService  service.AuthService
	userService  service.UserService
	storyService service.StoryService
	pageService  service.PageService
	userCache    *gocache.Cache
	cfg          *config.Config
	logger       *zap.Logger
}

func NewHandler(
	authService service.AuthService,
	userService service.UserService,
	storyService service.StoryService,
	pageService service.PageService,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	cacheTTL := cfg.UserCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Handler{
		authService:  authService,
		userService:  userService,
		storyService: storyService,
		pageService:  pageService,
		userCache:    gocache.New(cacheTTL, 2*cacheTTL),
		cfg:          cfg,
		logger:       logger.Named("Handler"),
	}
}

// RegisterRoutes mounts /health at the root and the API under cfg.APIPrefix.
// authRateLimit applies to /auth routes and may be nil.
func (h *Handler) RegisterRoutes(router *gin.Engine, authRateLimit gin.HandlerFunc) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)

	api := router.Group(h.cfg.APIPrefix)

	authGroup := api.Group("/auth")
	if authRateLimit != nil {
		authGroup.Use(authRateLimit)
	}
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", h.AuthMiddleware(), h.logout)
	}

	users := api.Group("/users", h.AuthMiddleware())
	{
		users.GET("/me", h.getMe)
		users.PUT("/me", h.updateMe)
		users.GET("", h.requireSuperuser, h.listUsers)
		users.GET("/:id", h.getUser)
		users.PUT("/:id", h.requireSuperuser, h.updateUser)
	}

	stories := api.Group("/stories", h.AuthMiddleware())
	{
		stories.POST("", h.createStory)
		stories.GET("", h.listStories)
		stories.GET("/:id", h.getStory)
		stories.PUT("/:id", h.updateStory)
		stories.DELETE("/:id", h.deleteStory)
		stories.POST("/:id/generate", h.generateStory)
	}

	pages := api.Group("/pages", h.AuthMiddleware())
	{
		pages.GET("/story/:story_id", h.listPages)
		pages.POST("", h.createPage)
		pages.GET("/:id", h.getPage)
		pages.PUT("/:id", h.updatePage)
		pages.DELETE("/:id", h.deletePage)
		pages.POST("/:id/generate-image", h.generatePageImage)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: h.cfg.AppVersion})
}

// currentUser returns the user placed into the context by AuthMiddleware.
func currentUser(c *gin.Context) *models.User {
	user, _ := c.MustGet(ctxUserKey).(*models.User)
	return user
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name+" parameter")
		return 0, false
	}
	return id, true
}

// parsePagination читает skip/limit (по умолчанию 0 и 100).
func parsePagination(c *gin.Context) (offset, limit int, ok bool) {
	offset, limit = 0, defaultPageLimit
	var err error
	if v := c.Query("skip"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			badRequest(c, "Invalid skip parameter")
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > maxPageLimit {
			badRequest(c, "Invalid limit parameter")
			return 0, 0, false
		}
	}
	return offset, limit, true
}

//go:build integration

package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"aitale-server/internal/database"
	"aitale-server/internal/interfaces"
	"aitale-server/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoriesSuite поднимает PostgreSQL и Redis в контейнерах и гоняет репозитории против них.
type RepositoriesSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *redis.Client
	tx          *database.PoolTxManager
	users       interfaces.UserRepository
	stories     interfaces.StoryRepository
	pages       interfaces.PageRepository
	tokens      interfaces.TokenRepository
}

func TestRepositoriesSuite(t *testing.T) {
	suite.Run(t, new(RepositoriesSuite))
}

func (s *RepositoriesSuite) SetupSuite() {
	s.ctx = context.Background()
	logger := zap.NewNop()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("aitale_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.pool, err = pgxpool.New(s.ctx, dsn)
	s.Require().NoError(err)
	s.Require().NoError(database.NewMigrator(s.pool, logger).Up())

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").WithStartupTimeout(time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start redis container")

	host, err := s.rdContainer.Host(s.ctx)
	s.Require().NoError(err)
	port, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	s.Require().NoError(err)
	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	s.Require().NoError(s.redisClient.Ping(s.ctx).Err())

	s.tx = database.NewPoolTxManager(s.pool, logger)
	s.users = database.NewPgUserRepository(logger)
	s.stories = database.NewPgStoryRepository(logger)
	s.pages = database.NewPgPageRepository(logger)
	s.tokens = database.NewRedisTokenRepository(s.redisClient, logger)
}

func (s *RepositoriesSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
}

func (s *RepositoriesSuite) TearDownTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE users RESTART IDENTITY CASCADE")
	s.Require().NoError(err)
	s.Require().NoError(s.redisClient.FlushDB(s.ctx).Err())
}

func (s *RepositoriesSuite) createUser(username string) *models.User {
	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "hash",
		IsActive:       true,
	}
	s.Require().NoError(s.users.CreateUser(s.ctx, s.pool, user))
	return user
}

func (s *RepositoriesSuite) createStory(userID int64, title string) *models.Story {
	story := &models.Story{
		UserID:   userID,
		Title:    title,
		Language: models.DefaultLanguage,
		Status:   models.StoryStatusDraft,
	}
	s.Require().NoError(s.stories.Create(s.ctx, s.pool, story))
	return story
}

func (s *RepositoriesSuite) TestUsers() {
	alice := s.createUser("alice")
	s.NotZero(alice.ID)
	s.False(alice.CreatedAt.IsZero())

	dupName := &models.User{Username: "alice", Email: "other@example.com", HashedPassword: "h"}
	s.ErrorIs(s.users.CreateUser(s.ctx, s.pool, dupName), models.ErrUserAlreadyExists)

	dupEmail := &models.User{Username: "other", Email: "alice@example.com", HashedPassword: "h"}
	s.ErrorIs(s.users.CreateUser(s.ctx, s.pool, dupEmail), models.ErrEmailAlreadyExists)

	found, err := s.users.GetUserByUsername(s.ctx, s.pool, "alice")
	s.Require().NoError(err)
	s.Equal(alice.ID, found.ID)
	s.Equal("hash", found.HashedPassword)

	_, err = s.users.GetUserByEmail(s.ctx, s.pool, "nobody@example.com")
	s.ErrorIs(err, models.ErrUserNotFound)

	name := "Alice A."
	found.FullName = &name
	found.IsActive = false
	s.Require().NoError(s.users.UpdateUser(s.ctx, s.pool, found))

	reloaded, err := s.users.GetUserByID(s.ctx, s.pool, alice.ID)
	s.Require().NoError(err)
	s.Equal("Alice A.", *reloaded.FullName)
	s.False(reloaded.IsActive)

	s.createUser("bob")
	list, err := s.users.ListUsers(s.ctx, s.pool, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("bob", list[0].Username)
}

func (s *RepositoriesSuite) TestStoryLifecycle() {
	user := s.createUser("alice")
	story := &models.Story{
		UserID:               user.ID,
		Title:                "The Lost Star",
		Language:             "en",
		Status:               models.StoryStatusDraft,
		GenerationParameters: models.ParameterBag{"title": "The Lost Star", "characters": []any{"Luna"}},
	}
	s.Require().NoError(s.stories.Create(s.ctx, s.pool, story))

	loaded, err := s.stories.GetByID(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal(models.StoryStatusDraft, loaded.Status)
	s.Nil(loaded.Content)
	s.Equal(models.ParameterBag{"title": "The Lost Star", "characters": []any{"Luna"}}, loaded.GenerationParameters)

	// Текст нельзя править, пока история не завершена.
	s.ErrorIs(s.stories.UpdateContent(s.ctx, s.pool, story.ID, "edited"), models.ErrContentNotEditable)

	s.Require().NoError(s.stories.UpdateStatus(s.ctx, s.pool, story.ID, models.StoryStatusGenerating))
	s.Require().NoError(s.stories.Complete(s.ctx, s.pool, story.ID, "Once upon a time"))

	// Update не трогает статус и текст.
	loaded.Title = "Renamed"
	s.Require().NoError(s.stories.Update(s.ctx, s.pool, loaded))
	reloaded, err := s.stories.GetByID(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", reloaded.Title)
	s.Equal(models.StoryStatusCompleted, reloaded.Status)
	s.Equal("Once upon a time", *reloaded.Content)

	s.Require().NoError(s.stories.UpdateContent(s.ctx, s.pool, story.ID, "edited"))
	reloaded, err = s.stories.GetByID(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal("edited", *reloaded.Content)

	s.Require().NoError(s.stories.Delete(s.ctx, s.pool, story.ID))
	_, err = s.stories.GetByID(s.ctx, s.pool, story.ID)
	s.ErrorIs(err, models.ErrStoryNotFound)
	s.ErrorIs(s.stories.Delete(s.ctx, s.pool, story.ID), models.ErrStoryNotFound)
	s.ErrorIs(s.stories.UpdateStatus(s.ctx, s.pool, story.ID, models.StoryStatusFailed), models.ErrStoryNotFound)
}

func (s *RepositoriesSuite) TestListStoriesNewestFirst() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	first := s.createStory(alice.ID, "first")
	second := s.createStory(alice.ID, "second")
	s.createStory(bob.ID, "not mine")

	list, err := s.stories.ListByUser(s.ctx, s.pool, alice.ID, 0, 100)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)

	list, err = s.stories.ListByUser(s.ctx, s.pool, alice.ID, 1, 1)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(first.ID, list[0].ID)
}

func (s *RepositoriesSuite) TestPages() {
	user := s.createUser("alice")
	story := s.createStory(user.ID, "pages")

	maxNumber, err := s.pages.MaxNumber(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Zero(maxNumber)

	prompt := "a fox in the snow"
	batch := []*models.Page{
		{StoryID: story.ID, Number: 2, Content: "second"},
		{StoryID: story.ID, Number: 1, Content: "first", ImagePrompt: &prompt},
	}
	s.Require().NoError(s.pages.CreateBatch(s.ctx, s.pool, batch))

	maxNumber, err = s.pages.MaxNumber(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal(2, maxNumber)

	dup := &models.Page{StoryID: story.ID, Number: 1, Content: "again"}
	s.ErrorIs(s.pages.Create(s.ctx, s.pool, dup), models.ErrPageNumberTaken)

	list, err := s.pages.ListByStory(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(1, list[0].Number)
	s.Equal(prompt, *list[0].ImagePrompt)
	s.Equal(2, list[1].Number)

	s.Require().NoError(s.pages.UpdateImageURL(s.ctx, s.pool, list[0].ID, "https://cdn.example.com/a.png"))
	page, err := s.pages.GetByID(s.ctx, s.pool, list[0].ID)
	s.Require().NoError(err)
	s.Equal("https://cdn.example.com/a.png", *page.ImageURL)

	page.Content = "rewritten"
	s.Require().NoError(s.pages.Update(s.ctx, s.pool, page))

	// Копия без image_url: новый промпт не должен затереть картинку.
	stale := &models.Page{ID: list[1].ID, ImagePrompt: &prompt}
	s.Require().NoError(s.pages.UpdateImageURL(s.ctx, s.pool, stale.ID, "https://cdn.example.com/b.png"))
	s.Require().NoError(s.pages.UpdateImagePrompt(s.ctx, s.pool, stale))
	s.False(stale.UpdatedAt.IsZero())
	second, err := s.pages.GetByID(s.ctx, s.pool, stale.ID)
	s.Require().NoError(err)
	s.Equal(prompt, *second.ImagePrompt)
	s.Equal("https://cdn.example.com/b.png", *second.ImageURL)
	s.Equal("second", second.Content)
	s.ErrorIs(s.pages.UpdateImagePrompt(s.ctx, s.pool, &models.Page{ID: -1, ImagePrompt: &prompt}), models.ErrPageNotFound)

	deleted, err := s.pages.DeleteByStory(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.EqualValues(2, deleted)
	s.ErrorIs(s.pages.Delete(s.ctx, s.pool, page.ID), models.ErrPageNotFound)
	_, err = s.pages.GetByID(s.ctx, s.pool, page.ID)
	s.ErrorIs(err, models.ErrPageNotFound)
}

func (s *RepositoriesSuite) TestDeletingStoryCascadesToPages() {
	user := s.createUser("alice")
	story := s.createStory(user.ID, "cascade")
	page := &models.Page{StoryID: story.ID, Number: 1, Content: "text"}
	s.Require().NoError(s.pages.Create(s.ctx, s.pool, page))

	s.Require().NoError(s.stories.Delete(s.ctx, s.pool, story.ID))
	_, err := s.pages.GetByID(s.ctx, s.pool, page.ID)
	s.ErrorIs(err, models.ErrPageNotFound)
}

func (s *RepositoriesSuite) TestWithinTxRollsBack() {
	user := s.createUser("alice")
	story := s.createStory(user.ID, "tx")
	boom := errors.New("boom")

	err := s.tx.WithinTx(s.ctx, func(tx interfaces.DBTX) error {
		if err := s.stories.Complete(s.ctx, tx, story.ID, "text"); err != nil {
			return err
		}
		if err := s.pages.Create(s.ctx, tx, &models.Page{StoryID: story.ID, Number: 1, Content: "p1"}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	reloaded, err := s.stories.GetByID(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Equal(models.StoryStatusDraft, reloaded.Status)
	pages, err := s.pages.ListByStory(s.ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Empty(pages)

	conn, err := s.tx.Acquire(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.stories.UpdateStatus(s.ctx, conn, story.ID, models.StoryStatusFailed))
	conn.Release()
}

func (s *RepositoriesSuite) TestTokens() {
	now := time.Now()
	td := &models.TokenDetails{
		AccessUUID:  "access-1",
		RefreshUUID: "refresh-1",
		AtExpires:   now.Add(time.Minute).Unix(),
		RtExpires:   now.Add(time.Hour).Unix(),
	}
	s.Require().NoError(s.tokens.SetToken(s.ctx, 7, td))

	userID, err := s.tokens.GetUserIDByAccessUUID(s.ctx, "access-1")
	s.Require().NoError(err)
	s.EqualValues(7, userID)
	userID, err = s.tokens.GetUserIDByRefreshUUID(s.ctx, "refresh-1")
	s.Require().NoError(err)
	s.EqualValues(7, userID)

	_, err = s.tokens.GetUserIDByAccessUUID(s.ctx, "unknown")
	s.ErrorIs(err, models.ErrTokenNotFound)

	s.Require().NoError(s.tokens.DeleteRefreshUUID(s.ctx, 7, "refresh-1"))
	_, err = s.tokens.GetUserIDByRefreshUUID(s.ctx, "refresh-1")
	s.ErrorIs(err, models.ErrTokenNotFound)

	deleted, err := s.tokens.DeleteTokens(s.ctx, 7, "access-1", "")
	s.Require().NoError(err)
	s.EqualValues(1, deleted)
}

func (s *RepositoriesSuite) TestDeleteTokensByUserID() {
	now := time.Now()
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.tokens.SetToken(s.ctx, 9, &models.TokenDetails{
			AccessUUID:  fmt.Sprintf("a-%d", i),
			RefreshUUID: fmt.Sprintf("r-%d", i),
			AtExpires:   now.Add(time.Minute).Unix(),
			RtExpires:   now.Add(time.Hour).Unix(),
		}))
	}
	s.Require().NoError(s.tokens.SetToken(s.ctx, 10, &models.TokenDetails{
		AccessUUID:  "other",
		RefreshUUID: "other-r",
		AtExpires:   now.Add(time.Minute).Unix(),
		RtExpires:   now.Add(time.Hour).Unix(),
	}))

	deleted, err := s.tokens.DeleteTokensByUserID(s.ctx, 9)
	s.Require().NoError(err)
	s.EqualValues(4, deleted)

	_, err = s.tokens.GetUserIDByAccessUUID(s.ctx, "a-1")
	s.ErrorIs(err, models.ErrTokenNotFound)
	userID, err := s.tokens.GetUserIDByAccessUUID(s.ctx, "other")
	s.Require().NoError(err)
	s.EqualValues(10, userID)
}

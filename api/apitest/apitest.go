// Package apitest wires the full api over an in-memory database for tests.
package apitest

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace/api/handlers"
	"marketplace/api/routes"
	"marketplace/db/dbtest"
	"marketplace/models"
	"marketplace/realtime"
	"marketplace/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const Password = "s3cret-pass"

type Env struct {
	ORM     *gorm.DB
	Router  *gin.Engine
	Users   *services.UserService
	Hub     *realtime.Hub
	Storage *services.LocalStorage
}

func New(t testing.TB) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orm := dbtest.New(t)
	storage, err := services.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	hub := realtime.NewHub()
	t.Cleanup(hub.Shutdown)
	messages := services.NewMessageService(orm)
	users := services.NewUserService(orm, services.NewTokenIssuer("test-secret", time.Hour))
	h := &handlers.Handler{
		Users:      users,
		Categories: services.NewCategoryService(orm),
		Orders:     services.NewOrderService(orm, storage),
		Comments:   services.NewCommentService(orm),
		Chats:      services.NewChatService(orm),
		Messages:   messages,
		Gateway: realtime.NewGateway(hub, realtime.NewLocalBroker(hub), messages, realtime.WithRejection(func(err error) bool {
			return errors.Is(err, services.ErrNotParticipant)
		})),
		MaxUploadBytes: 1 << 20,
	}
	return &Env{
		ORM:     orm,
		Router:  routes.NewRouter(zap.NewNop(), h, users, storage.Root()),
		Users:   users,
		Hub:     hub,
		Storage: storage,
	}
}

// SignUp registers a user with Password and returns it with a fresh token.
func (e *Env) SignUp(t testing.TB, username string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := e.Users.SignUp(ctx, services.SignUpInput{
		Username:  username,
		FirstName: "First " + username,
		LastName:  "Last " + username,
		Email:     username + "@example.com",
		Password:  Password,
		Password2: Password,
	})
	require.NoError(t, err)
	token, _, err := e.Users.Login(ctx, username, Password)
	require.NoError(t, err)
	return user, token
}

// Package dbtest provides an in-memory database and fixture factories for
// tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"marketplace/db"
	"marketplace/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()
	orm, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(orm) })
	return orm
}

// CreateUser inserts a user with random names. The password column holds a
// placeholder, use services.UserService.SignUp when a login is needed.
func CreateUser(t testing.TB, orm *gorm.DB) *models.User {
	t.Helper()
	first := gofakeit.FirstName()
	user := &models.User{
		Username:  fmt.Sprintf("%s_%s", strings.ToLower(first), gofakeit.Numerify("######")),
		FirstName: first,
		LastName:  gofakeit.LastName(),
		Email:     gofakeit.Email(),
		Password:  "unusable",
	}
	require.NoError(t, orm.Create(user).Error)
	return user
}

func CreateCategory(t testing.TB, orm *gorm.DB) *models.Category {
	t.Helper()
	category := &models.Category{Name: gofakeit.ProductCategory()}
	if len(category.Name) > 32 {
		category.Name = category.Name[:32]
	}
	require.NoError(t, orm.Create(category).Error)
	return category
}

type OrderOption func(*models.Order)

func WithPrice(price int64) OrderOption {
	return func(o *models.Order) { o.Price = price }
}

func WithTitle(title string) OrderOption {
	return func(o *models.Order) { o.Title = title }
}

func Inactive() OrderOption {
	return func(o *models.Order) { o.IsActive = false }
}

func CreateOrder(t testing.TB, orm *gorm.DB, author *models.User, category *models.Category, opts ...OrderOption) *models.Order {
	t.Helper()
	order := &models.Order{
		IsActive:    true,
		Title:       gofakeit.ProductName(),
		Description: gofakeit.ProductDescription(),
		AuthorID:    author.ID,
		Price:       int64(gofakeit.Number(1, 100000)),
		CategoryID:  category.ID,
	}
	for _, opt := range opts {
		opt(order)
	}
	active := order.IsActive
	require.NoError(t, orm.Create(order).Error)
	if !active {
		// gorm skips zero values in favour of the column default
		require.NoError(t, orm.Model(order).Update("is_active", false).Error)
		order.IsActive = false
	}
	return order
}

func CreateChat(t testing.TB, orm *gorm.DB, order *models.Order, producer, consumer *models.User) *models.Chat {
	t.Helper()
	chat := &models.Chat{OrderID: order.ID, ProducerID: producer.ID, ConsumerID: consumer.ID}
	require.NoError(t, orm.Create(chat).Error)
	return chat
}

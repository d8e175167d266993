package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"marketplace/config"
	"marketplace/db"
	"marketplace/db/dbtest"
	"marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	conf, err := config.Parse([]byte("db:\n  driver: sqlite\n  path: " + filepath.Join(t.TempDir(), "market.db") + "\nauth:\n  jwt_secret: s\n"))
	require.NoError(t, err)

	orm, err := db.ConnectDB(conf)
	require.NoError(t, err)
	defer db.Close(orm)

	for _, table := range []string{"users", "categories", "orders", "images", "comments", "chats", "messages"} {
		assert.True(t, orm.Migrator().HasTable(table), table)
	}
	assert.True(t, orm.Migrator().HasIndex(&models.Chat{}, "idx_chat_triple"))

	_, err = db.ConnectDB(nil)
	assert.Error(t, err)
}

func TestChatTripleIsUnique(t *testing.T) {
	orm := dbtest.New(t)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	order := dbtest.CreateOrder(t, orm, seller, dbtest.CreateCategory(t, orm))
	dbtest.CreateChat(t, orm, order, seller, buyer)

	dup := &models.Chat{OrderID: order.ID, ProducerID: seller.ID, ConsumerID: buyer.ID}
	assert.Error(t, orm.Create(dup).Error)
}

func TestDeletingAuthorCascades(t *testing.T) {
	orm := dbtest.New(t)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	order := dbtest.CreateOrder(t, orm, seller, dbtest.CreateCategory(t, orm))
	require.NoError(t, orm.Create(&models.Image{OrderID: order.ID, File: "a.png"}).Error)
	chat := dbtest.CreateChat(t, orm, order, seller, buyer)
	require.NoError(t, orm.Omit("Chat", "Sender").Create(&models.Message{
		ChatID: chat.ID, SenderID: buyer.ID, Text: "hi", MessageType: models.MessageTypeText,
	}).Error)

	require.NoError(t, orm.Delete(&models.User{}, seller.ID).Error)

	for _, model := range []interface{}{&models.Order{}, &models.Image{}, &models.Chat{}, &models.Message{}} {
		var count int64
		require.NoError(t, orm.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
}

func TestSessionsAreReusable(t *testing.T) {
	orm := dbtest.New(t)
	first := dbtest.CreateUser(t, orm)
	dbtest.CreateUser(t, orm)

	read := db.GetReadOnlyDB(context.Background(), orm)
	var one models.User
	require.NoError(t, read.Where("id = ?", first.ID).First(&one).Error)
	var all []models.User
	require.NoError(t, read.Find(&all).Error)
	assert.Len(t, all, 2, "conditions do not leak between queries")

	write := db.GetWriteDB(context.Background(), orm)
	require.NoError(t, write.Model(&models.User{ID: first.ID}).Update("first_name", "Changed").Error)
	require.NoError(t, read.First(&one, first.ID).Error)
	assert.Equal(t, "Changed", one.FirstName)
}

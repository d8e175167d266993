package services

import (
	"errors"
	"testing"

	"marketplace/db/dbtest"
	"marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenChatIsIdempotent(t *testing.T) {
	orm := dbtest.New(t)
	svc := NewChatService(orm)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	order := dbtest.CreateOrder(t, orm, seller, dbtest.CreateCategory(t, orm))
	in := ChatInput{Order: order.ID, Producer: seller.ID, Consumer: buyer.ID}

	chat, created, err := svc.Open(ctx, buyer.ID, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, order.Title, chat.Order.Title)
	assert.Equal(t, seller.ID, chat.Producer.ID)

	again, created, err := svc.Open(ctx, seller.ID, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, chat.ID, again.ID)

	var count int64
	require.NoError(t, orm.Model(&models.Chat{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOpenChatValidation(t *testing.T) {
	orm := dbtest.New(t)
	svc := NewChatService(orm)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	stranger := dbtest.CreateUser(t, orm)
	order := dbtest.CreateOrder(t, orm, seller, dbtest.CreateCategory(t, orm))

	cases := map[string]struct {
		caller int64
		in     ChatInput
		field  string
	}{
		"missing order":   {buyer.ID, ChatInput{Producer: seller.ID, Consumer: buyer.ID}, "order"},
		"same users":      {seller.ID, ChatInput{Order: order.ID, Producer: seller.ID, Consumer: seller.ID}, "consumer"},
		"outsider":        {stranger.ID, ChatInput{Order: order.ID, Producer: seller.ID, Consumer: buyer.ID}, "non_field_errors"},
		"unknown order":   {buyer.ID, ChatInput{Order: order.ID + 10, Producer: seller.ID, Consumer: buyer.ID}, "order"},
		"unknown account": {buyer.ID, ChatInput{Order: order.ID, Producer: stranger.ID + 10, Consumer: buyer.ID}, "non_field_errors"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Open(ctx, tc.caller, tc.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestChatVisibility(t *testing.T) {
	orm := dbtest.New(t)
	svc := NewChatService(orm)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	stranger := dbtest.CreateUser(t, orm)
	category := dbtest.CreateCategory(t, orm)
	first := dbtest.CreateChat(t, orm, dbtest.CreateOrder(t, orm, seller, category), seller, buyer)
	second := dbtest.CreateChat(t, orm, dbtest.CreateOrder(t, orm, seller, category), seller, buyer)

	res, err := svc.List(ctx, buyer.ID, ParsePage("", ""))
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, second.ID, res.Results[0].ID, "newest first")
	assert.Equal(t, first.ID, res.Results[1].ID)

	res, err = svc.List(ctx, stranger.ID, ParsePage("", ""))
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	_, err = svc.Get(ctx, stranger.ID, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Messages(ctx, stranger.ID, first.ID, ParsePage("", ""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatMessagesNewestFirst(t *testing.T) {
	orm := dbtest.New(t)
	chats := NewChatService(orm)
	messages := NewMessageService(orm)
	seller := dbtest.CreateUser(t, orm)
	buyer := dbtest.CreateUser(t, orm)
	chat := dbtest.CreateChat(t, orm, dbtest.CreateOrder(t, orm, seller, dbtest.CreateCategory(t, orm)), seller, buyer)

	for _, text := range []string{"hi", "is it available?", "yes"} {
		sender := buyer.ID
		if text == "yes" {
			sender = seller.ID
		}
		_, err := messages.Create(ctx, chat.ID, sender, text, models.MessageTypeText)
		require.NoError(t, err)
	}

	res, err := chats.Messages(ctx, buyer.ID, chat.ID, ParsePage("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "yes", res.Results[0].Text)
	assert.Equal(t, seller.FirstName, res.Results[0].Sender.FirstName)
	assert.True(t, res.HasNext(ParsePage("1", "2")))
}

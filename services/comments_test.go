package services

import (
	"errors"
	"strings"
	"testing"

	"marketplace/db/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	orm := dbtest.New(t)
	svc := NewCommentService(orm)
	author := dbtest.CreateUser(t, orm)
	seller := dbtest.CreateUser(t, orm)
	other := dbtest.CreateUser(t, orm)

	first, err := svc.Create(ctx, author.ID, CommentInput{User: seller.ID, Message: "fast delivery"})
	require.NoError(t, err)
	assert.Equal(t, author.ID, first.Author.ID)
	assert.Equal(t, seller.ID, first.User.ID)
	second, err := svc.Create(ctx, other.ID, CommentInput{User: seller.ID, Message: " polite "})
	require.NoError(t, err)
	assert.Equal(t, "polite", second.Message)

	forSeller, err := svc.ForUser(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, forSeller, 2)
	assert.Equal(t, second.ID, forSeller[0].ID)

	forAuthor, err := svc.ForUser(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, forAuthor)
	assert.NotNil(t, forAuthor)

	_, err = svc.ForUser(ctx, other.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := svc.List(ctx, ParsePage("", ""))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	assert.ErrorIs(t, svc.Delete(ctx, other.ID, first.ID), ErrNotFound, "only the author deletes")
	require.NoError(t, svc.Delete(ctx, author.ID, first.ID))
	_, err = svc.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentValidation(t *testing.T) {
	orm := dbtest.New(t)
	svc := NewCommentService(orm)
	author := dbtest.CreateUser(t, orm)

	_, err := svc.Create(ctx, author.ID, CommentInput{User: author.ID + 5, Message: strings.Repeat("x", 256)})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "user")
	assert.Contains(t, verr.Fields, "message")
}

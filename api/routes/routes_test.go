package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace/api/apitest"
	"marketplace/db/dbtest"
	"marketplace/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, env *apitest.Env, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func doMultipart(t *testing.T, env *apitest.Env, method, path, token string, fields map[string]string, files ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i, name := range files {
		part, err := mw.CreateFormFile(fmt.Sprintf("file%02d", i), name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	env := apitest.New(t)

	w := doJSON(t, env, http.MethodPost, "/user/signup/", "", map[string]string{
		"username": "anna", "first_name": "Anna", "last_name": "K",
		"email": "anna@example.com", "password": "pass-word-1", "password2": "pass-word-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, env, http.MethodPost, "/user/signup/", "", map[string]string{
		"username": "bob", "password": "x", "password2": "y",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verr struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &verr)
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "email")

	w = doJSON(t, env, http.MethodPost, "/user/login/", "", map[string]string{"username": "anna", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, env, http.MethodPost, "/user/login/", "", map[string]string{"username": "anna", "password": "pass-word-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string         `json:"token"`
		User  models.Profile `json:"user"`
	}
	decode(t, w, &login)
	require.NotEmpty(t, login.Token)

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, env, http.MethodGet, "/user/", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, env, http.MethodGet, "/user/", "garbage", nil).Code)

	w = doJSON(t, env, http.MethodPatch, "/user/", login.Token, map[string]string{"first_name": "Anya", "email": "ignored@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.Profile
	decode(t, w, &profile)
	assert.Equal(t, "Anya", profile.FirstName)
	assert.Equal(t, "anna@example.com", profile.Email)

	w = doJSON(t, env, http.MethodPut, "/user/password/", login.Token, map[string]string{
		"old_password": "pass-word-1", "password": "pass-word-2", "password2": "pass-word-2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, env, http.MethodPost, "/user/login/", "", map[string]string{"username": "anna", "password": "pass-word-2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestValidation(t *testing.T) {
	env := apitest.New(t)
	seller, token := env.SignUp(t, "seller")
	order := dbtest.CreateOrder(t, env.ORM, seller, dbtest.CreateCategory(t, env.ORM))

	type fieldErrors struct {
		Fields map[string]string `json:"fields"`
	}

	w := doJSON(t, env, http.MethodPost, "/user/signup/", "", map[string]string{
		"username": "carl", "first_name": "Carl", "last_name": "M",
		"email": "not-an-email", "password": "pass-word-1", "password2": "pass-word-2",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var signup fieldErrors
	decode(t, w, &signup)
	assert.Equal(t, "enter a valid email address", signup.Fields["email"])
	assert.Equal(t, "password fields didn't match", signup.Fields["password2"])
	assert.NotContains(t, signup.Fields, "username")

	w = doJSON(t, env, http.MethodPost, "/chats/", token, map[string]int64{
		"order": order.ID, "producer": seller.ID, "consumer": seller.ID,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var chat fieldErrors
	decode(t, w, &chat)
	assert.Equal(t, "must differ from producer", chat.Fields["consumer"])

	w = doJSON(t, env, http.MethodPost, "/comments/", token, map[string]interface{}{
		"message": strings.Repeat("x", 256),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var comment fieldErrors
	decode(t, w, &comment)
	assert.Equal(t, "this field is required", comment.Fields["user"])
	assert.Equal(t, "ensure this field has no more than 255 characters", comment.Fields["message"])

	w = doJSON(t, env, http.MethodPost, "/user/login/", "", map[string]string{"username": "seller"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var login fieldErrors
	decode(t, w, &login)
	assert.Contains(t, login.Fields, "password")
}

func TestAuthorsAndCategories(t *testing.T) {
	env := apitest.New(t)
	user, token := env.SignUp(t, "seller")
	dbtest.CreateCategory(t, env.ORM)

	w := doJSON(t, env, http.MethodGet, "/authors/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var authors []map[string]interface{}
	decode(t, w, &authors)
	require.Len(t, authors, 1)
	assert.NotContains(t, authors[0], "email")

	w = doJSON(t, env, http.MethodGet, fmt.Sprintf("/authors/%d/", user.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, "/authors/999/", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, "/authors/abc/", token, nil).Code)

	w = doJSON(t, env, http.MethodGet, "/categories/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var categories []models.Category
	decode(t, w, &categories)
	assert.Len(t, categories, 1)
}

type orderDetail struct {
	ID       int64          `json:"id"`
	Title    string         `json:"title"`
	Price    int64          `json:"price"`
	IsActive bool           `json:"is_active"`
	ImageSet []models.Image `json:"image_set"`
	Chat     *int64         `json:"chat"`
}

func imageIDs(images []models.Image) []int64 {
	ids := make([]int64, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids
}

func TestOrderLifecycle(t *testing.T) {
	env := apitest.New(t)
	_, sellerToken := env.SignUp(t, "seller")
	_, buyerToken := env.SignUp(t, "buyer")
	category := dbtest.CreateCategory(t, env.ORM)

	fields := map[string]string{
		"title":       "Bicycle",
		"description": "Blue bicycle",
		"price":       "15000",
		"category":    fmt.Sprint(category.ID),
	}
	w := doMultipart(t, env, http.MethodPost, "/orders/", sellerToken, fields, "1.png", "2.png", "3.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created orderDetail
	decode(t, w, &created)
	require.Len(t, created.ImageSet, 3)
	assert.True(t, created.IsActive)

	w = doJSON(t, env, http.MethodGet, "/media/"+created.ImageSet[0].File, buyerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image 1.png", w.Body.String())

	path := fmt.Sprintf("/orders/%d/", created.ID)
	keep := fmt.Sprintf("%d,%d", created.ImageSet[0].ID, created.ImageSet[2].ID)
	w = doMultipart(t, env, http.MethodPatch, path, buyerToken, map[string]string{"images": keep})
	assert.Equal(t, http.StatusNotFound, w.Code, "only the author updates")

	w = doMultipart(t, env, http.MethodPatch, path, sellerToken, map[string]string{"images": keep, "price": "14000"}, "4.png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated orderDetail
	decode(t, w, &updated)
	assert.Equal(t, int64(14000), updated.Price)
	ids := imageIDs(updated.ImageSet)
	require.Len(t, ids, 3)
	assert.Equal(t, []int64{created.ImageSet[0].ID, created.ImageSet[2].ID}, ids[:2])
	assert.Greater(t, ids[2], created.ImageSet[2].ID)

	w = doMultipart(t, env, http.MethodPut, path, sellerToken, map[string]string{"title": "Only title"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "PUT needs every field")

	w = doJSON(t, env, http.MethodGet, path+"switch", buyerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, env, http.MethodGet, path+"switch", sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_active": false}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, path, buyerToken, nil).Code, "inactive order is hidden")
	assert.Equal(t, http.StatusOK, doJSON(t, env, http.MethodGet, path, sellerToken, nil).Code)

	w = doJSON(t, env, http.MethodGet, "/user/orders/", sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var own struct {
		Count int64 `json:"count"`
	}
	decode(t, w, &own)
	assert.Equal(t, int64(1), own.Count)

	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodDelete, path, buyerToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, doJSON(t, env, http.MethodDelete, path, sellerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, path, sellerToken, nil).Code)
}

func TestOrderListing(t *testing.T) {
	env := apitest.New(t)
	seller, token := env.SignUp(t, "seller")
	category := dbtest.CreateCategory(t, env.ORM)
	for _, price := range []int64{10, 50, 100} {
		dbtest.CreateOrder(t, env.ORM, seller, category, dbtest.WithPrice(price))
	}

	prices := func(query string) []int64 {
		w := doJSON(t, env, http.MethodGet, "/orders/"+query, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Results []struct {
				Price int64 `json:"price"`
			} `json:"results"`
		}
		decode(t, w, &page)
		out := []int64{}
		for _, r := range page.Results {
			out = append(out, r.Price)
		}
		return out
	}
	assert.Equal(t, []int64{100, 50}, prices("?min_price=20&max_price=100"))
	assert.Equal(t, []int64{100, 50, 10}, prices("?min_price=abc"))
	assert.Equal(t, []int64{10, 50, 100}, prices("?ordering=price"))
	assert.Equal(t, []int64{100, 50, 10}, prices("?ordering=bogus"))

	w := doJSON(t, env, http.MethodGet, "/orders/?page_size=2&ordering=price", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Count    int64   `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
	}
	decode(t, w, &page)
	assert.Equal(t, int64(3), page.Count)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)

	w = doJSON(t, env, http.MethodGet, "/orders/?page_size=2&page=2", token, nil)
	decode(t, w, &page)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.NotContains(t, *page.Previous, "page=")
}

func TestComments(t *testing.T) {
	env := apitest.New(t)
	seller, _ := env.SignUp(t, "seller")
	_, buyerToken := env.SignUp(t, "buyer")
	_, otherToken := env.SignUp(t, "other")

	w := doJSON(t, env, http.MethodPost, "/comments/", buyerToken, map[string]interface{}{"user": seller.ID, "message": "great"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comment models.CommentView
	decode(t, w, &comment)
	assert.Equal(t, seller.ID, comment.User.ID)

	w = doJSON(t, env, http.MethodGet, fmt.Sprintf("/comments/%d/user", seller.ID), otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var about []models.CommentView
	decode(t, w, &about)
	assert.Len(t, about, 1)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, "/comments/999/user", otherToken, nil).Code)

	path := fmt.Sprintf("/comments/%d/", comment.ID)
	assert.Equal(t, http.StatusOK, doJSON(t, env, http.MethodGet, path, otherToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodDelete, path, otherToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, doJSON(t, env, http.MethodDelete, path, buyerToken, nil).Code)
}

func TestChatsAndSocket(t *testing.T) {
	env := apitest.New(t)
	seller, sellerToken := env.SignUp(t, "seller")
	buyer, buyerToken := env.SignUp(t, "buyer")
	_, strangerToken := env.SignUp(t, "stranger")
	order := dbtest.CreateOrder(t, env.ORM, seller, dbtest.CreateCategory(t, env.ORM))

	in := map[string]int64{"order": order.ID, "producer": seller.ID, "consumer": buyer.ID}
	w := doJSON(t, env, http.MethodPost, "/chats/", buyerToken, in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var chat models.ChatView
	decode(t, w, &chat)
	assert.Equal(t, http.StatusOK, doJSON(t, env, http.MethodPost, "/chats/", sellerToken, in).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, env, http.MethodPost, "/chats/", strangerToken, in).Code)

	chatPath := fmt.Sprintf("/chats/%d/", chat.ID)
	assert.Equal(t, http.StatusOK, doJSON(t, env, http.MethodGet, chatPath, sellerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, chatPath, strangerToken, nil).Code)

	w = doJSON(t, env, http.MethodGet, fmt.Sprintf("/orders/%d/", order.ID), buyerToken, nil)
	var detail orderDetail
	decode(t, w, &detail)
	require.NotNil(t, detail.Chat)
	assert.Equal(t, chat.ID, *detail.Chat)

	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(chatToken, token string) (*websocket.Conn, int) {
		conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws/%s/?token=%s", wsBase, chatToken, token), nil)
		if err != nil {
			require.NotNil(t, resp, err.Error())
			return nil, resp.StatusCode
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn, resp.StatusCode
	}

	_, status := dial("not-a-word", buyerToken)
	assert.Equal(t, http.StatusNotFound, status)
	_, status = dial("abc", buyerToken)
	assert.Equal(t, http.StatusNotFound, status)
	_, status = dial(fmt.Sprint(chat.ID), strangerToken)
	assert.Equal(t, http.StatusNotFound, status)
	_, status = dial(fmt.Sprint(chat.ID), "")
	assert.Equal(t, http.StatusUnauthorized, status)

	a, _ := dial(fmt.Sprint(chat.ID), buyerToken)
	b, _ := dial(fmt.Sprint(chat.ID), sellerToken)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.Eventually(t, func() bool {
		return env.Hub.Members(fmt.Sprintf("chat_%d", chat.ID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(map[string]interface{}{
		"text": "hi", "chat_id": fmt.Sprint(chat.ID), "sender_id": buyer.ID, "message_type": 1,
	}))
	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg models.MessageView
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, buyer.ID, msg.Sender.ID)
	}

	w = doJSON(t, env, http.MethodGet, chatPath+"messages/", sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Count   int64                `json:"count"`
		Results []models.MessageView `json:"results"`
	}
	decode(t, w, &history)
	assert.Equal(t, int64(1), history.Count)
	assert.Equal(t, http.StatusNotFound, doJSON(t, env, http.MethodGet, chatPath+"messages/", strangerToken, nil).Code)
}

func TestServiceEndpoints(t *testing.T) {
	env := apitest.New(t)
	assert.Equal(t, http.StatusOK, doJSON(t, env, http.MethodGet, "/healthz", "", nil).Code)

	w := doJSON(t, env, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

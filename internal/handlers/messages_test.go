package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/chat"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/mocks"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/ws"
)

const (
	leader   = "aaaaaaaa-0000-4000-8000-000000000001"
	member   = "bbbbbbbb-0000-4000-8000-000000000002"
	outsider = "cccccccc-0000-4000-8000-000000000003"
	groupOne = "11111111-0000-4000-8000-000000000001"
	groupTwo = "22222222-0000-4000-8000-000000000002"
)

func studyGroup() models.Group {
	return models.Group{ID: groupOne, Name: "algorithms", LeaderID: leader, MemberIDs: []string{leader, member}}
}

// newRouter builds a test engine whose caller is taken from X-User-ID.
func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity(middleware.IdentityOptions{TrustUserHeader: true}))
	return r
}

func do(r *gin.Engine, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type messageFixture struct {
	router *gin.Engine
	store  *repositories.MemoryMessageStore
	groups *mocks.GroupRepositoryMock
	users  *mocks.UserRepositoryMock
}

func newMessageFixture() messageFixture {
	store := repositories.NewMemoryMessageStore()
	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(chat.NewService(store, groups, users), ws.NewHub(nil), nil)

	r := newRouter()
	r.GET("/unread-notifications", handler.UnreadNotifications)
	r.GET("/last-messages", handler.LastMessages)
	r.PUT("/mark-read", handler.MarkRead)
	r.GET("/groups/:group_id/messages", handler.GroupMessages)
	r.POST("/groups/:group_id/messages", handler.PostGroupMessage)
	return messageFixture{router: r, store: store, groups: groups, users: users}
}

func TestUnreadNotificationsEmptyGroupList(t *testing.T) {
	store := new(mocks.MessageStoreMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(chat.NewService(store, new(mocks.GroupRepositoryMock), users), nil, nil)
	r := newRouter()
	r.GET("/unread-notifications", handler.UnreadNotifications)

	for _, q := range []string{"group=", "group=%20,%20,", ""} {
		rec := do(r, http.MethodGet, "/unread-notifications?userId="+member+"&"+q, member, "")
		require.Equal(t, http.StatusOK, rec.Code, q)
		require.JSONEq(t, `{"total":0,"groupCounts":{}}`, rec.Body.String(), q)
	}
	store.AssertNotCalled(t, "UnreadCounts", mock.Anything, mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestUnreadNotificationsMalformedGroupList(t *testing.T) {
	f := newMessageFixture()

	rec := do(f.router, http.MethodGet, "/unread-notifications?userId="+member+"&group="+groupOne+",nope", member, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"message":"invalid group list"}`, rec.Body.String())
}

func TestUnreadNotificationsCountsAndMarkRead(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.store.Append(ctx, groupOne, leader, text)
		require.NoError(t, err)
	}
	f.users.On("Exists", mock.Anything, member).Return(true, nil)
	f.groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil)

	path := "/unread-notifications?userId=" + member + "&group=" + groupOne + "," + groupTwo
	rec := do(f.router, http.MethodGet, path, member, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total":3,"groupCounts":{"`+groupOne+`":3}}`, rec.Body.String())

	rec = do(f.router, http.MethodPut, "/mark-read", member, `{"groupId":"`+groupOne+`","userId":"`+member+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(f.router, http.MethodGet, path, member, "")
	require.JSONEq(t, `{"total":0,"groupCounts":{}}`, rec.Body.String())
}

func TestMarkReadForAnotherUserIsForbidden(t *testing.T) {
	store := new(mocks.MessageStoreMock)
	handler := NewMessageHandler(chat.NewService(store, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock)), nil, nil)
	r := newRouter()
	r.PUT("/mark-read", handler.MarkRead)

	rec := do(r, http.MethodPut, "/mark-read", member, `{"groupId":"`+groupOne+`","userId":"`+leader+`"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadDefaultsToCaller(t *testing.T) {
	store := new(mocks.MessageStoreMock)
	groups := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(chat.NewService(store, groups, new(mocks.UserRepositoryMock)), nil, nil)
	r := newRouter()
	r.PUT("/mark-read", handler.MarkRead)
	groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil).Once()
	store.On("MarkRead", mock.Anything, groupOne, member).Return(nil).Once()

	rec := do(r, http.MethodPut, "/mark-read", member, `{"groupId":"`+groupOne+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestMarkReadChecksGroupBeforeWriting(t *testing.T) {
	store := new(mocks.MessageStoreMock)
	groups := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(chat.NewService(store, groups, new(mocks.UserRepositoryMock)), nil, nil)
	r := newRouter()
	r.PUT("/mark-read", handler.MarkRead)
	groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil)
	groups.On("GetGroup", mock.Anything, groupTwo).Return(nil, repositories.ErrGroupNotFound)

	rec := do(r, http.MethodPut, "/mark-read", member, `{"groupId":"`+groupTwo+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"message":"group not found"}`, rec.Body.String())

	rec = do(r, http.MethodPut, "/mark-read", outsider, `{"groupId":"`+groupOne+`","userId":"`+outsider+`"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadRequiresIdentity(t *testing.T) {
	f := newMessageFixture()

	rec := do(f.router, http.MethodPut, "/mark-read", "", `{"groupId":"`+groupOne+`"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLastMessages(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	_, err := f.store.Append(ctx, groupOne, leader, "first")
	require.NoError(t, err)
	_, err = f.store.Append(ctx, groupOne, member, "latest")
	require.NoError(t, err)

	rec := do(f.router, http.MethodGet, "/last-messages?userId="+member+"&group="+groupOne+","+groupTwo, member, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]models.LastMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "latest", got[groupOne].Content)
	require.True(t, got[groupOne].IsMine)
}

func TestGroupMessagesMembership(t *testing.T) {
	f := newMessageFixture()
	_, err := f.store.Append(context.Background(), groupOne, leader, "hello")
	require.NoError(t, err)
	f.groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil)
	f.groups.On("GetGroup", mock.Anything, groupTwo).Return(nil, repositories.ErrGroupNotFound)
	f.users.On("BulkUsers", mock.Anything, []string{leader}).Return([]models.UserSummary{{ID: leader, Name: "Ada"}}, nil)

	rec := do(f.router, http.MethodGet, "/groups/"+groupOne+"/messages", outsider, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(f.router, http.MethodGet, "/groups/"+groupTwo+"/messages", member, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(f.router, http.MethodGet, "/groups/"+groupOne+"/messages", member, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, "hello", views[0].Content)
	require.NotNil(t, views[0].Sender)
	require.Equal(t, "Ada", views[0].Sender.Name)
}

func TestGroupMessagesInvalidID(t *testing.T) {
	f := newMessageFixture()

	rec := do(f.router, http.MethodGet, "/groups/bad/messages", member, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostGroupMessage(t *testing.T) {
	f := newMessageFixture()
	f.groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil)
	f.users.On("BulkUsers", mock.Anything, []string{member}).Return([]models.UserSummary{{ID: member, Name: "Bo"}}, nil)

	rec := do(f.router, http.MethodPost, "/groups/"+groupOne+"/messages", member, `{"content":"<b>hi</b>"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var event models.MessageEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	require.Equal(t, "hi", event.Content)
	require.Equal(t, "Bo", event.SenderName)
	require.Equal(t, []string{member}, event.ReadBy)
}

func TestPostGroupMessageStoreFailureIsGeneric(t *testing.T) {
	store := new(mocks.MessageStoreMock)
	groups := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(chat.NewService(store, groups, new(mocks.UserRepositoryMock)), ws.NewHub(nil), nil)
	r := newRouter()
	r.POST("/groups/:group_id/messages", handler.PostGroupMessage)
	groups.On("GetGroup", mock.Anything, groupOne).Return(studyGroup(), nil)
	store.On("Append", mock.Anything, groupOne, member, "hi").Return(nil, errors.New("pq: connection reset")).Once()

	rec := do(r, http.MethodPost, "/groups/"+groupOne+"/messages", member, `{"content":"hi"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"message":"Server Error"}`, rec.Body.String())
	store.AssertExpectations(t)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/auth"
	"studygroup-service/internal/mocks"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
)

type userFixture struct {
	public *gin.Engine
	router *gin.Engine
	users  *mocks.UserRepositoryMock
	groups *mocks.GroupRepositoryMock
}

func newUserFixture() userFixture {
	users := new(mocks.UserRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	handler := NewUserHandler(users, groups, nil)

	gin.SetMode(gin.TestMode)
	public := gin.New()
	public.POST("/users", handler.Register)

	r := newRouter()
	r.GET("/users/:user_id", handler.GetUser)
	r.PUT("/users/:user_id", handler.UpdateUser)
	return userFixture{public: public, router: r, users: users, groups: groups}
}

func registration(overrides map[string]string) string {
	body := map[string]string{
		"name":        "Kim",
		"major":       models.Majors[0],
		"phoneNumber": "010-1234-5678",
		"birthdate":   "2001-03-09",
		"email":       "20231234@st.yc.ac.kr",
		"password":    "correct-horse",
	}
	for k, v := range overrides {
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestRegisterDerivesStudentIDAndHashesPassword(t *testing.T) {
	f := newUserFixture()
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.StudentID == "20231234" &&
			u.Email == "20231234@st.yc.ac.kr" &&
			u.Birthdate.Format("2006-01-02") == "2001-03-09" &&
			auth.CheckPassword(u.PasswordHash, "correct-horse")
	})).Return(models.User{ID: member, Name: "Kim", StudentID: "20231234"}, nil).Once()

	rec := do(f.public, http.MethodPost, "/users", "", registration(nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "correct-horse")
	require.Contains(t, rec.Body.String(), `"groups":[]`)
	f.users.AssertExpectations(t)
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"non school email": {"email": "someone@gmail.com"},
		"short student id": {"email": "2023123@st.yc.ac.kr"},
		"bad phone":        {"phoneNumber": "011-1234-5678"},
		"unknown major":    {"major": "astrology"},
		"short password":   {"password": "short"},
		"bad birthdate":    {"birthdate": "09/03/2001"},
		"blank name":       {"name": "  "},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			f := newUserFixture()

			rec := do(f.public, http.MethodPost, "/users", "", registration(overrides))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newUserFixture()
	f.users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repositories.ErrUserExists).Once()

	rec := do(f.public, http.MethodPost, "/users", "", registration(map[string]string{"phoneNumber": "01012345678"}))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetUserListsGroups(t *testing.T) {
	f := newUserFixture()
	f.users.On("GetUser", mock.Anything, member).Return(models.User{ID: member, Name: "Kim"}, nil).Once()
	f.groups.On("ListGroupsForUser", mock.Anything, member).Return([]models.Group{studyGroup()}, nil).Once()

	rec := do(f.router, http.MethodGet, "/users/"+member, leader, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"groups":["`+groupOne+`"]`)
}

func TestUpdateUserSelfOnly(t *testing.T) {
	f := newUserFixture()

	rec := do(f.router, http.MethodPut, "/users/"+member, leader, `{"name":"Lee"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(f.router, http.MethodPut, "/users/"+member, "", `{"name":"Lee"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	current := models.User{ID: member, Name: "Kim", Major: models.Majors[0], PhoneNumber: "010-1234-5678"}
	f.users.On("GetUser", mock.Anything, member).Return(current, nil).Once()
	f.users.On("UpdateProfile", mock.Anything, member, "Lee", models.Majors[0], "010-1234-5678").Return(current, nil).Once()

	rec = do(f.router, http.MethodPut, "/users/"+member, member, `{"name":"Lee"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	f.users.AssertExpectations(t)
}

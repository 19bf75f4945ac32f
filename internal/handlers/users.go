package handlers

import (
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/auth"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/sanitize"
	"studygroup-service/internal/telemetry"
)

var (
	schoolEmailPattern = regexp.MustCompile(`^[0-9]{8}@st\.yc\.ac\.kr$`)
	phonePattern       = regexp.MustCompile(`^010-?\d{4}-?\d{4}$`)
)

const (
	minPasswordLength = 8
	birthdateLayout   = "2006-01-02"
)

// UserHandler serves registration and profile endpoints.
type UserHandler struct {
	users  repositories.UserRepository
	groups repositories.GroupRepository
	auditor
}

func NewUserHandler(users repositories.UserRepository, groups repositories.GroupRepository, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{users: users, groups: groups, auditor: auditor{emitter: audit}}
}

type registerRequest struct {
	Name        string `json:"name"`
	Major       string `json:"major"`
	PhoneNumber string `json:"phoneNumber"`
	Birthdate   string `json:"birthdate"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// userProfile is a user with the ids of the groups they belong to.
type userProfile struct {
	models.User
	Groups []string `json:"groups"`
}

func validMajor(major string) bool {
	return slices.Contains(models.Majors, major)
}

// Register handles POST /users. The student id is the email's local part.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}

	name := sanitize.Text(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.PhoneNumber)
	switch {
	case name == "":
		respondError(c, apperrors.Validation("name is required"))
		return
	case !validMajor(req.Major):
		respondError(c, apperrors.Validation("unknown major"))
		return
	case !phonePattern.MatchString(phone):
		respondError(c, apperrors.Validation("invalid phone number"))
		return
	case !schoolEmailPattern.MatchString(email):
		respondError(c, apperrors.Validation("a school email is required"))
		return
	case len(req.Password) < minPasswordLength:
		respondError(c, apperrors.Validation("password must be at least 8 characters"))
		return
	}
	birthdate, err := time.Parse(birthdateLayout, strings.TrimSpace(req.Birthdate))
	if err != nil {
		respondError(c, apperrors.Validation("birthdate must be YYYY-MM-DD"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), models.User{
		Name:         name,
		Major:        req.Major,
		PhoneNumber:  phone,
		Birthdate:    birthdate,
		Email:        email,
		StudentID:    strings.SplitN(email, "@", 2)[0],
		PasswordHash: hash,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "user.register", "user registered")
	c.JSON(http.StatusCreated, userProfile{User: user, Groups: []string{}})
}

// GetUser handles GET /users/:user_id.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	profile := userProfile{User: user, Groups: make([]string, 0, len(groups))}
	for _, group := range groups {
		profile.Groups = append(profile.Groups, group.ID)
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateUser handles PUT /users/:user_id. Users may only edit themselves;
// omitted fields keep their value.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	if !models.SameID(userID, caller) {
		respondError(c, apperrors.Forbidden("cannot edit another user's profile"))
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Major       *string `json:"major"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	name, major, phone := user.Name, user.Major, user.PhoneNumber
	if req.Name != nil {
		if n := sanitize.Text(*req.Name); n != "" {
			name = n
		}
	}
	if req.Major != nil {
		if !validMajor(*req.Major) {
			respondError(c, apperrors.Validation("unknown major"))
			return
		}
		major = *req.Major
	}
	if req.PhoneNumber != nil {
		p := strings.TrimSpace(*req.PhoneNumber)
		if !phonePattern.MatchString(p) {
			respondError(c, apperrors.Validation("invalid phone number"))
			return
		}
		phone = p
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), userID, name, major, phone)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "user.update", "profile updated")
	c.JSON(http.StatusOK, updated)
}

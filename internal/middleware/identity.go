package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/auth"
	"studygroup-service/internal/models"
)

const userIDKey = "userID"

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// IdentityOptions configures how the caller's user id is established.
type IdentityOptions struct {
	Verifier TokenVerifier
	// TrustUserHeader accepts X-User-ID from a trusted gateway when no
	// bearer token is present.
	TrustUserHeader bool
	// AllowQueryToken accepts ?token= for clients that cannot set headers,
	// such as browser websockets.
	AllowQueryToken bool
}

// Identity rejects requests without a verifiable user identity and stores
// the normalized user id in the context.
func Identity(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveIdentity(c, opts)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func resolveIdentity(c *gin.Context, opts IdentityOptions) (string, bool) {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		t, err := auth.BearerToken(header)
		if err != nil {
			return "", false
		}
		token = t
	} else if opts.AllowQueryToken {
		token = c.Query("token")
	}

	if token != "" {
		if opts.Verifier == nil {
			return "", false
		}
		userID, err := opts.Verifier.Verify(token)
		if err != nil {
			return "", false
		}
		return userID, true
	}

	if opts.TrustUserHeader {
		if userID, err := models.NormalizeID(c.GetHeader("X-User-ID")); err == nil {
			return userID, true
		}
	}
	return "", false
}

// UserID returns the authenticated user id set by Identity.
func UserID(c *gin.Context) (string, bool) {
	val, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

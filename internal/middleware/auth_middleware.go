package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appauth "github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/pkg/auth"
)

// Context keys set by the auth middleware
const (
	ContextUserID  = "userID"
	ContextIsAdmin = "isAdmin"
)

// AuthMiddleware resolves bearer tokens into request identities
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Identify attaches the caller's identity to the request when a token is
// present. Requests without a token continue anonymously; a token that fails
// validation is rejected.
func (m *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			c.Next()
			return
		}

		tokenString, err := auth.ExtractBearerToken(strings.Trim(authHeader, "\"'"))
		if err != nil {
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
			return
		}

		claims, err := m.jwtService.ValidateAndExtractClaims(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			return
		}

		identity := appauth.Identity{UserID: claims.UserID, IsAdmin: claims.IsAdmin}
		c.Request = c.Request.WithContext(appauth.WithIdentity(c.Request.Context(), identity))
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextIsAdmin, claims.IsAdmin)

		c.Next()
	}
}

// RequireAuth rejects anonymous requests. It must run after Identify.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if appauth.IdentityFrom(c.Request.Context()).Anonymous() {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authorization header missing")
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, 0 for anonymous callers.
func CurrentUserID(c *gin.Context) int64 {
	return appauth.IdentityFrom(c.Request.Context()).UserID
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	errorDetail := dto.NewErrorDetail(code, "Authentication required")
	errorDetail = errorDetail.WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

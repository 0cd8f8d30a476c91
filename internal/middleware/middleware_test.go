package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appauth "github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/models/dto"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/auth"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(exp time.Duration) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{SecretKey: "middleware-secret", AccessTokenExp: exp, TokenIssuer: "coursecred-test"})
}

func identityRouter(m *AuthMiddleware, protected bool) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{m.Identify()}
	if protected {
		handlers = append(handlers, m.RequireAuth())
	}
	handlers = append(handlers, func(c *gin.Context) {
		id := appauth.IdentityFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "isAdmin": id.IsAdmin})
	})
	r.GET("/whoami", handlers...)
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp
}

func TestIdentify(t *testing.T) {
	jwtService := newJWT(time.Hour)
	m := NewAuthMiddleware(jwtService)
	token, _, err := jwtService.GenerateToken(7, true)
	require.NoError(t, err)
	expired, _, err := newJWT(-time.Minute).GenerateToken(7, false)
	require.NoError(t, err)

	tests := []struct {
		name      string
		header    string
		protected bool
		status    int
		code      dto.ErrorCode
		body      string
	}{
		{name: "anonymous public", status: http.StatusOK, body: `{"isAdmin":false,"userId":0}`},
		{name: "anonymous protected", protected: true, status: http.StatusUnauthorized, code: dto.ErrorCodeUnauthorized},
		{name: "bearer", header: "Bearer " + token, protected: true, status: http.StatusOK, body: `{"isAdmin":true,"userId":7}`},
		{name: "raw token", header: token, status: http.StatusOK, body: `{"isAdmin":true,"userId":7}`},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized, code: dto.ErrorCodeExpiredToken},
		{name: "garbage", header: "Bearer not.a.token", status: http.StatusUnauthorized, code: dto.ErrorCodeInvalidToken},
		{name: "prefix only", header: "Bearer ", status: http.StatusUnauthorized, code: dto.ErrorCodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			identityRouter(m, tt.protected).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
				return
			}
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   dto.ErrorCode
	}{
		{apperrors.ErrInvalidRating, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{apperrors.ErrCertificateNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{apperrors.ErrAlreadyEnrolled, http.StatusConflict, dto.ErrorCodeConflict},
		{apperrors.NewForbiddenError("no"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{apperrors.ErrNotCompleted, http.StatusPreconditionFailed, dto.ErrorCodePreconditionFailed},
		{errors.New("boom"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleAPIError(c, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Nil(t, resp.Error.Details, "internal errors are not leaked")
				assert.Equal(t, dto.ErrorSeverityCritical, resp.Error.Severity)
			} else {
				assert.Equal(t, dto.ErrorSeverityError, resp.Error.Severity)
			}
		})
	}
}

type sample struct {
	Name  string `json:"name" binding:"required"`
	Score int    `json:"score" binding:"gte=1,lte=5"`
}

func TestValidateRequest(t *testing.T) {
	r := gin.New()
	r.POST("/", ValidateRequest[sample](), func(c *gin.Context) {
		body, ok := ValidatedBody[sample](c)
		require.True(t, ok)
		c.JSON(http.StatusOK, body)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","score":3}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"a","score":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"score":9}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, dto.ErrorCodeValidationFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "Name is required")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_HandlerLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger.Configure(logger.Config{Level: logger.InfoLevel, Output: &buf})
	t.Cleanup(func() { logger.Configure(logger.Config{Level: logger.InfoLevel, Pretty: true}) })

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", func(c *gin.Context) {
		logger.Ctx(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "req-42", entry["requestID"])
	}
	assert.Contains(t, lines[0], "inside handler")
	assert.Contains(t, lines[1], "Request handled")
}

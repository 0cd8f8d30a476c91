package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/coursecred/internal/app/models/dto"
)

const validatedBodyKey = "validatedBody"

// ValidateRequest binds the JSON body into a fresh T, runs its binding rules
// and stores the result for the handler.
func ValidateRequest[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := new(T)
		if err := c.ShouldBindJSON(body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
			return
		}
		c.Set(validatedBodyKey, body)
		c.Next()
	}
}

// ValidatedBody returns the body stored by ValidateRequest.
func ValidatedBody[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(validatedBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := v.(*T)
	return body, ok
}

// ValidateQuery binds query parameters into a fresh T.
func ValidateQuery[T any](c *gin.Context) (*T, bool) {
	query := new(T)
	if err := c.ShouldBindQuery(query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return nil, false
	}
	return query, true
}

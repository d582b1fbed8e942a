package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"printstore/internal/logging"
	"printstore/internal/service/anonymous"
)

type ctxKey string

const sessionCtxKey ctxKey = "sessionID"

func requestIDMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// sessionMiddleware resolves the shopper session token and stores the session
// id on the request context.
func sessionMiddleware(sessions sessionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(sessionHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Code: "SESSION_REQUIRED", Message: "session token required"})
			return
		}
		sessionID, err := sessions.Lookup(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, anonymous.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Code: "SESSION_INVALID", Message: "session expired or unknown"})
				return
			}
			logger.Error(c.Request.Context(), "session lookup failed", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: "INTERNAL_ERROR", Message: "internal error"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, sessionID)
		ctx = logger.WithSessionID(ctx, sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) string {
	id, _ := c.Request.Context().Value(sessionCtxKey).(string)
	return id
}

package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"order-ledger/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"

	roleAdmin = "admin"

	ctxUserID  = "user_id"
	ctxIsAdmin = "is_admin"
)

// RequestID reuses the caller's X-Request-ID or mints one, echoes it on the
// response and stores it in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(telemetry.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Identity reads the caller set by the gateway. Requests without a valid
// X-User-ID are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "missing or invalid " + HeaderUserID + " header",
			})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxIsAdmin, strings.EqualFold(c.GetHeader(HeaderUserRole), roleAdmin))
		c.Request = c.Request.WithContext(telemetry.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "administrator role required",
			})
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) uint64 {
	return c.GetUint64(ctxUserID)
}

func isAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}

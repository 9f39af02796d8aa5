package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/api"
	"github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
)

// ErrorHandler middleware catches panics and converts them to proper error responses
func ErrorHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic while handling request",
					zap.Any("panic", r),
					zap.String("path", c.FullPath()),
				)
				api.RespondWithError(c, errors.Internal("internal server error", ""))
			}
		}()
		c.Next()

		// handlers that recorded an error without responding
		if len(c.Errors) > 0 && !c.Writer.Written() {
			api.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}

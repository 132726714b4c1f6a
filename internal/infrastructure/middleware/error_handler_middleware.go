package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	apperrors "streamcast/pkg/errors"
)

// domainStatus maps broadcast domain errors onto HTTP statuses.
func domainStatus(err error) (int, apperrors.ErrorCode) {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, apperrors.ErrCodePermissionDenied
	case errors.Is(err, domain.ErrDeviceNotFound):
		return http.StatusNotFound, apperrors.ErrCodeDeviceNotFound
	case errors.Is(err, domain.ErrDeviceBusy):
		return http.StatusConflict, apperrors.ErrCodeDeviceBusy
	case errors.Is(err, domain.ErrConstraintUnsatisfiable):
		return http.StatusUnprocessableEntity, apperrors.ErrCodeConstraintUnsatisfiable
	case errors.Is(err, domain.ErrScreenShareUnsupported):
		return http.StatusUnprocessableEntity, apperrors.ErrCodeScreenShareUnsupported
	case errors.Is(err, domain.ErrCodecUnsupported):
		return http.StatusUnprocessableEntity, apperrors.ErrCodeCodecUnsupported
	case errors.Is(err, domain.ErrTransportTimeout):
		return http.StatusGatewayTimeout, apperrors.ErrCodeTransportTimeout
	case errors.Is(err, domain.ErrTransportClosed):
		return http.StatusBadGateway, apperrors.ErrCodeTransportClosed
	case errors.Is(err, domain.ErrTransportUnsupported):
		return http.StatusBadRequest, apperrors.ErrCodeInvalidInput
	case errors.Is(err, domain.ErrProcessSpawn):
		return http.StatusInternalServerError, apperrors.ErrCodeProcessSpawn
	case errors.Is(err, domain.ErrProcessCrash):
		return http.StatusInternalServerError, apperrors.ErrCodeProcessCrash
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict, apperrors.ErrCodeSessionActive
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, apperrors.ErrCodeSessionNotFound
	case errors.Is(err, domain.ErrCredentialRequired):
		return http.StatusBadRequest, apperrors.ErrCodeInvalidInput
	default:
		return http.StatusInternalServerError, apperrors.ErrCodeInternal
	}
}

// ErrorHandlerMiddleware converts errors attached to the gin context
// into structured JSON responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if appErr := apperrors.GetAppError(err); appErr != nil {
			logger.Errorw("request failed",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		status, code := domainStatus(err)
		logger.Errorw("request failed",
			"error", err.Error(),
			"status", status,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(status, gin.H{
			"error":   string(code),
			"message": err.Error(),
		})
	}
}

// RecoveryMiddleware recovers from handler panics.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"error", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

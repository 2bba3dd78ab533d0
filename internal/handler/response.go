package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	pkgvalidator "github.com/lifeline-health/donor-api/pkg/validator"
)

func NewSuccessResponse(data interface{}) *model.Response {
	return &model.Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *model.Response {
	return &model.Response{
		Status:  "error",
		Message: message,
	}
}

func RespondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondError is the single place errors become HTTP statuses.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode() >= http.StatusInternalServerError {
			logError(c, err)
		}
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}

	logError(c, err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

// RespondBindError reports a malformed or invalid request body.
func RespondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(pkgvalidator.Describe(err)))
		return
	}
	c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body"))
}

func logError(c *gin.Context, err error) {
	log.Error().
		Err(err).
		Str("request_id", c.GetString(ContextRequestID)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
}

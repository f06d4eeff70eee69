package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/utils"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HandleServiceError 把服务层类型化错误映射为 HTTP 状态码
//   - NotFoundError               -> 404
//   - RedundantTransitionError    -> 409
//   - ConcurrentModificationError -> 409
//   - InvalidTransitionError      -> 422
//   - ValidationError             -> 400
//   - gorm.ErrDuplicatedKey       -> 409
//   - 其它                        -> 500
func HandleServiceError(c *gin.Context, err error) {
	var notFound *service.NotFoundError
	if errors.As(err, &notFound) {
		Error(c, http.StatusNotFound, "resource not found", notFound.Error())
		return
	}

	var redundant *service.RedundantTransitionError
	if errors.As(err, &redundant) {
		Error(c, http.StatusConflict, "redundant transition", redundant.Error())
		return
	}

	var concurrent *service.ConcurrentModificationError
	if errors.As(err, &concurrent) {
		Error(c, http.StatusConflict, "concurrent modification", concurrent.Error())
		return
	}

	var invalid *service.InvalidTransitionError
	if errors.As(err, &invalid) {
		Error(c, http.StatusUnprocessableEntity, "invalid transition", invalid.Error())
		return
	}

	var validation *utils.ValidationError
	if errors.As(err, &validation) {
		Error(c, http.StatusBadRequest, "invalid request", validation.Error())
		return
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		Error(c, http.StatusConflict, "duplicate resource", err.Error())
		return
	}

	Error(c, http.StatusInternalServerError, "internal server error", err.Error())
}

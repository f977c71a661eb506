package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErr "arbiter/pkg/errors"
)

// Response is the uniform JSON envelope.
type Response struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErr.Success,
		Message: appErr.Success.Message(),
		Data:    data,
	})
}

func respondError(c *gin.Context, err error) {
	code := appErr.GetCode(err)
	c.JSON(httpStatus(code), Response{
		Code:    code,
		Message: errMessage(err, code),
	})
}

func errMessage(err error, code appErr.ErrorCode) string {
	if e := appErr.GetError(err); e != nil {
		return e.Message
	}
	return code.Message()
}

func httpStatus(code appErr.ErrorCode) int {
	switch code {
	case appErr.Success:
		return http.StatusOK
	case appErr.InvalidParams, appErr.ValidationFailed, appErr.CodeTooLarge,
		appErr.PacketInvalid, appErr.TestCaseInvalid, appErr.LanguageNotSupported:
		return http.StatusBadRequest
	case appErr.Unauthorized, appErr.InvalidCredentials, appErr.TokenExpired, appErr.TokenInvalid:
		return http.StatusUnauthorized
	case appErr.Forbidden, appErr.CompetitionPaused, appErr.CompetitionFinished:
		return http.StatusForbidden
	case appErr.NotFound, appErr.RecordNotFound, appErr.SubmissionNotFound,
		appErr.ProblemNotFound, appErr.AccountNotFound:
		return http.StatusNotFound
	case appErr.SubmissionInFlight, appErr.AttemptsExhausted:
		return http.StatusConflict
	case appErr.JudgeQueueFull, appErr.ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/bandmask/internal/attention"
	"github.com/samcharles93/bandmask/internal/mask"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg   string
	param string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{msg: msg, param: param}
}

// writeError maps library errors onto HTTP statuses.
func writeError(c *echo.Context, err error) error {
	var inv invalidRequestError
	switch {
	case errors.As(err, &inv):
		return writeErrorBody(c, http.StatusBadRequest, "invalid_request_error", "", inv.param, err.Error())
	case errors.Is(err, mask.ErrInvalidParameter):
		return writeErrorBody(c, http.StatusBadRequest, "invalid_request_error", "invalid_parameter", "", err.Error())
	case errors.Is(err, attention.ErrShapeMismatch):
		return writeErrorBody(c, http.StatusBadRequest, "invalid_request_error", "shape_mismatch", "", err.Error())
	case errors.Is(err, attention.ErrSequenceTooLong):
		return writeErrorBody(c, http.StatusUnprocessableEntity, "invalid_request_error", "sequence_too_long", "", err.Error())
	default:
		return writeErrorBody(c, http.StatusInternalServerError, "server_error", "", "", err.Error())
	}
}

func writeErrorBody(c *echo.Context, status int, errType, code, param, msg string) error {
	return c.JSON(status, ErrorBody{Error: ErrorDetail{
		Message: msg,
		Type:    errType,
		Code:    code,
		Param:   param,
	}})
}

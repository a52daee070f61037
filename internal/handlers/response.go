package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursebuilder/backend/internal/apierr"
)

var errForbidden = errors.New("forbidden")

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError unwraps an apierr.Error when present, otherwise
// reports a generic 500.
func RespondServiceError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

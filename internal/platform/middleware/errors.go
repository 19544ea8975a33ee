package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// MaskInternalErrors replaces the message of 5xx responses with the bare
// status text before handing the error to next. Logger still records the
// original error.
func MaskInternalErrors(next echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code >= http.StatusInternalServerError {
			err = echo.NewHTTPError(he.Code, http.StatusText(he.Code))
		}
		next(err, c)
	}
}

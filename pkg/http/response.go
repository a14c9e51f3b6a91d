package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as-is with the given status.
func JSONResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, data)
}

// SuccessResponse writes data with 200.
func SuccessResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusOK, data)
}

// StatusOK writes {"status": msg}.
func StatusOK(c echo.Context, msg string) error {
	return SuccessResponse(c, StatusResponse{Status: msg})
}

// InternalServerErrorResponse writes a generic 500 body.
func InternalServerErrorResponse(c echo.Context, msg string) error {
	if msg == "" {
		msg = "Something went wrong"
	}
	return JSONResponse(c, http.StatusInternalServerError, InternalError(msg))
}

// AppErrorResponse writes err as {"error": ..., "code": ...}. Anything that is not
// an *AppError becomes a 500 carrying the error text.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return JSONResponse(c, appErr.Status, appErr)
	}
	return InternalServerErrorResponse(c, err.Error())
}

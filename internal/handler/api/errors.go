package api

import (
	"errors"
	"net/http"

	"CropCast/internal/domain/models"
	xhttp "CropCast/pkg/http"
)

const msgInvalidDays = "Invalid 'days' parameter. Must be an integer."

// toAppError maps domain and validation errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs xhttp.ValidationErrors
	if errors.As(err, &verrs) {
		if verrs.AllTag("required") {
			mp := &models.MissingParameterError{Params: verrs.Fields()}
			return xhttp.NewAppError("ERR_MISSING_PARAMETER", mp.Error(), http.StatusBadRequest).WithError(mp)
		}
		return xhttp.BadRequestError(verrs.Error()).WithFields(verrs)
	}

	switch {
	case errors.Is(err, models.ErrMissingParameter):
		return xhttp.NewAppError("ERR_MISSING_PARAMETER", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInvalidHorizon):
		return xhttp.NewAppError("ERR_INVALID_HORIZON", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	}
	return xhttp.InternalError(err.Error()).WithError(err)
}

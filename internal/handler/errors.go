package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
)

// errorBody is the JSON shape of every error response. Exactly one of
// Resource or Action is set for kinds that name one.
type errorBody struct {
	Resource    string `json:"resource,omitempty"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

type errorView struct {
	status      int
	description string
	details     string
}

// errorViews is the only place where error kinds meet HTTP.
var errorViews = map[apperr.Kind]errorView{
	apperr.KindDuplicateProfile: {http.StatusBadRequest,
		"Profile already exists.",
		"There is another profile with same value for one of the unique fields."},
	apperr.KindProfileNotFound: {http.StatusNotFound,
		"No profile matches provided credentials.",
		"Requested resource doesn't exist or has been deleted."},
	apperr.KindExpiredToken: {http.StatusUnauthorized,
		"Request initiator's token is expired.",
		"Your credentials or tokens are invalid or missing."},
	apperr.KindInvalidToken: {http.StatusForbidden,
		"Invalid token.",
		"Provided tokens or credentials don't grant you enough access rights."},
	apperr.KindNotAuthenticated: {http.StatusUnauthorized,
		"Request initiator is not authenticated.",
		"Your credentials or tokens are invalid or missing."},
	apperr.KindUpstreamUnavailable: {http.StatusBadGateway,
		"Failed to establish a connection to an upstream server.",
		"Connection could not be established due to missing requirements."},
	apperr.KindUpstreamProtocol: {http.StatusBadGateway,
		"Unexpected error while dealing with an upstream.",
		"Unhandled response from a remote server."},
	apperr.KindFavoriteAlreadyExists: {http.StatusBadRequest,
		"Movie is already in favorites.",
		"Movie with provided id is present in current user's favorite list."},
	apperr.KindFavoriteNotFound: {http.StatusBadRequest,
		"Request is not correct.",
		"Could not find favorite relation with provided data."},
	apperr.KindMovieNotFound: {http.StatusNotFound,
		"Requested resource not found.",
		"Requested resource doesn't exist or has been deleted."},
	apperr.KindValidation: {http.StatusUnprocessableEntity,
		"Request validation failed.",
		"Request is not correct and cannot be handled."},
}

var internalError = errorBody{
	Description: "Unknown error occured.",
	Details:     "Please contact backend maintenance team.",
}

// NewHTTPErrorHandler renders errors returned by handlers and middleware.
// apperr kinds use the table above, echo errors keep their status, and
// anything else is logged and answered with 500.
func NewHTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := renderError(err)
		if status >= http.StatusInternalServerError && apperr.KindOf(err) == "" {
			log.WithError(err).WithField("uri", c.Request().RequestURI).Error("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}

func renderError(err error) (int, errorBody) {
	if ae, ok := apperr.As(err); ok {
		if view, ok := errorViews[ae.Kind]; ok {
			body := errorBody{
				Resource:    ae.Resource,
				Action:      ae.Action,
				Description: view.description,
				Details:     view.details,
			}
			if ae.Kind == apperr.KindValidation && ae.Message != "" {
				body.Details = ae.Message
			}
			return view.status, body
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := errorBody{Description: http.StatusText(he.Code), Details: fmt.Sprint(he.Message)}
		if he.Code >= http.StatusInternalServerError {
			body = internalError
		}
		return he.Code, body
	}
	return http.StatusInternalServerError, internalError
}

// invalid builds a Validation error with a message for the client.
func invalid(format string, args ...any) error {
	return apperr.Newf(apperr.ErrValidation, format, args...)
}

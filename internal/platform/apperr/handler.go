package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the standard response wrapper. Data is omitted on errors;
// Errors is omitted on success.
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  *ErrorBody  `json:"errors,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	ErrorType Kind                `json:"error_type"`
	Details   map[string][]string `json:"details,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data interface{}) *Envelope {
	return &Envelope{Status: "success", Message: "ok", Data: data}
}

// Created wraps data in a success envelope for resource creation.
func Created(data interface{}) *Envelope {
	return &Envelope{Status: "success", Message: "created", Data: data}
}

// HTTPErrorHandler returns an echo error handler that renders typed
// application errors as the standard envelope. Untyped errors become
// UnexpectedError with the message replaced by the request id so internal
// details never leak.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ae *Error
		if errors.As(err, &ae) {
			_ = c.JSON(HTTPStatus(ae.Kind), &Envelope{
				Status:  "error",
				Message: ae.Message,
				Errors:  &ErrorBody{ErrorType: ae.Kind, Details: ae.Details},
			})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			kind := KindUnexpected
			switch he.Code {
			case http.StatusBadRequest:
				kind = KindValidation
			case http.StatusNotFound:
				kind = KindReference
			case http.StatusForbidden, http.StatusUnauthorized:
				kind = KindNotAuthorized
			}
			_ = c.JSON(he.Code, &Envelope{
				Status:  "error",
				Message: msg,
				Errors:  &ErrorBody{ErrorType: kind},
			})
			return
		}

		rid, _ := c.Get("request_id").(string)
		logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, &Envelope{
			Status:  "error",
			Message: "internal error (ref " + rid + ")",
			Errors:  &ErrorBody{ErrorType: KindUnexpected},
		})
	}
}

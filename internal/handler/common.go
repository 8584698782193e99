// Package handler exposes the HTTP API.  Handlers translate requests into
// calls on the matchmaker, the exchange engine and the repositories, and
// map apperr kinds onto status codes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/middleware"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CurrentStatus string `json:"current_status,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindInvalidState: http.StatusConflict,
	apperr.KindUnauthorized: http.StatusForbidden,
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindDangling:     http.StatusUnprocessableEntity,
}

// writeError renders err.  Unclassified errors are logged and reported as
// a generic 500 so no internals leak to the client.
func writeError(c echo.Context, log zerolog.Logger, err error) error {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: string(apperr.KindInternal), Message: "internal error"})
	}
	msg := err.Error()
	if e, ok := asAppErr(err); ok {
		msg = e.Message
	}
	return c.JSON(status, errorBody{Error: string(kind), Message: msg, CurrentStatus: apperr.CurrentStatus(err)})
}

func asAppErr(err error) (*apperr.Error, bool) {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// actor builds the engine actor from the JWT identity.
func actor(c echo.Context) (exchange.Actor, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return exchange.Actor{}, apperr.Unauthorized("authentication required")
	}
	return exchange.Actor{UserID: id, Admin: middleware.IsAdmin(c)}, nil
}

// uintParam parses a positive integer path parameter.
func uintParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// idParam returns a non-empty string path parameter.
func idParam(c echo.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		return "", apperr.Validation("%s is required", name)
	}
	return v, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid body")
	}
	return nil
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

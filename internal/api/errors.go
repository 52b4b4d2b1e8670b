package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/floatrig/floatrig/internal/bot"
	"github.com/floatrig/floatrig/internal/controller"
	"github.com/floatrig/floatrig/internal/inspect"
)

func writeInvalidArgument(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", message)
}

func writePayloadTooLarge(w http.ResponseWriter, limit int64) {
	msg := "request body too large"
	if limit > 0 {
		msg = "request body too large (max " + strconv.FormatInt(limit, 10) + " bytes)"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msg)
}

func writeDecodeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *requestBodyTooLargeError
	if errors.As(err, &tooLarge) {
		writePayloadTooLarge(w, tooLarge.Limit)
		return
	}
	writeInvalidArgument(w, err.Error())
}

// writeInspectError maps link-parse and dispatch errors to HTTP responses.
func writeInspectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inspect.ErrInvalidLink):
		WriteError(w, http.StatusBadRequest, "INVALID_LINK", err.Error())
	case errors.Is(err, controller.ErrNoBotsAvailable):
		WriteError(w, http.StatusServiceUnavailable, "NO_BOTS_AVAILABLE", "no ready idle bot to serve the request")
	case errors.Is(err, bot.ErrTTLExceeded):
		WriteError(w, http.StatusGatewayTimeout, "TTL_EXCEEDED", "game coordinator did not answer in time")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, http.StatusGatewayTimeout, "TTL_EXCEEDED", "request deadline exceeded")
	case errors.Is(err, bot.ErrDestroyed), errors.Is(err, bot.ErrSessionReset):
		WriteError(w, http.StatusServiceUnavailable, "BOT_UNAVAILABLE", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

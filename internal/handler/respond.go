package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/giftlink/internal/middleware"
	"github.com/dukerupert/giftlink/internal/model"
)

const maxBodyBytes = 64 << 10

// errEmptyBody is returned by decodeJSON when the request carries no body at all.
var errEmptyBody = errors.New("invalid JSON")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// serverError logs err and sends a response that reveals nothing about it.
func serverError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "request_id", middleware.RequestID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errors.New("invalid JSON")
	}
	return nil
}

// statusFor maps a failure reason to its HTTP status.
func statusFor(reason model.Reason) int {
	switch reason {
	case model.ReasonValidation:
		return http.StatusBadRequest
	case model.ReasonNotFound:
		return http.StatusNotFound
	case model.ReasonChildUnavailable, model.ReasonInvalidTransition:
		return http.StatusConflict
	case model.ReasonTokenInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

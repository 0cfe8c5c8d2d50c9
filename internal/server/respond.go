package server

import (
	"net/http"

	"github.com/goccy/go-json"

	"panorama-viewer/internal/logging"
	"panorama-viewer/internal/panorama"
)

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageResp struct {
	Message string `json:"message"`
}

type createdResp struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Title   string `json:"title"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResp{Error: msg, Code: code})
}

func statusFor(err error) int {
	switch panorama.KindOf(err) {
	case panorama.KindValidation:
		return http.StatusBadRequest
	case panorama.KindUnauthorized:
		return http.StatusForbidden
	case panorama.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to its status and a body without the
// cause. Server-side failures are logged with the cause.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	code, msg := panorama.Public(err)

	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("op", op).
			Str("code", code).
			Msg("request_failed")
	} else {
		logging.Ctx(r.Context()).Debug().
			Str("op", op).
			Str("code", code).
			Int("status", status).
			Msg("request_rejected")
	}
	writeErrorStatus(w, status, code, msg)
}

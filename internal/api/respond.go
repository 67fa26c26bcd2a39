package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/pkg/livedto"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("api_encode_error", zap.Error(err))
	}
}

// writeError maps domain failures onto HTTP statuses. Anything untyped is a
// 500 and logged with its cause; typed failures travel as an ErrorResponse.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *fen.ParseError
	if errors.As(err, &parseErr) {
		writeJSON(w, http.StatusBadRequest, livedto.ErrorResponse{
			Code:    livedto.CodeParseError,
			Message: parseErr.Error(),
		})
		return
	}

	var domErr *livedto.DomainError
	if !errors.As(err, &domErr) {
		obslog.L().Error("api_internal_error", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, livedto.ErrorResponse{
			Code:    livedto.CodeUnavailable,
			Message: "internal error",
		})
		return
	}

	writeJSON(w, statusOf(domErr.Code), livedto.ErrorResponse{
		Code:      domErr.Code,
		Message:   domErr.Message,
		Retryable: domErr.Retryable,
	})
}

func statusOf(code string) int {
	switch code {
	case livedto.CodeNotFound:
		return http.StatusNotFound
	case livedto.CodeForbidden:
		return http.StatusForbidden
	case livedto.CodeInvalidMove, livedto.CodePromotionRequired:
		return http.StatusUnprocessableEntity
	case livedto.CodeConflict:
		return http.StatusConflict
	case livedto.CodeInvalidState, livedto.CodeParseError:
		return http.StatusBadRequest
	case livedto.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &livedto.DomainError{Code: livedto.CodeParseError, Message: "malformed request body: " + err.Error()}
	}
	return nil
}

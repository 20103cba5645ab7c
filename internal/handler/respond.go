package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/biopractice/internal/i18n"
	"github.com/pavelanni/biopractice/internal/model"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("malformed request body")

// messageIDs maps sentinel errors to their translation IDs. Checked in order.
var messageIDs = []struct {
	err error
	id  string
}{
	{errBadRequest, "ErrBadRequest"},
	{model.ErrUnsupportedBoard, "ErrUnsupportedBoard"},
	{model.ErrMissingFields, "ErrMissingFields"},
	{model.ErrInvalidCount, "ErrInvalidCount"},
	{model.ErrTooManyQuestions, "ErrTooManyQuestions"},
	{model.ErrTopicNotFound, "ErrTopicNotFound"},
	{model.ErrTopicBoardMismatch, "ErrTopicBoardMismatch"},
	{model.ErrSubTopicNotFound, "ErrSubTopicNotFound"},
	{model.ErrSubTopicMismatch, "ErrSubTopicMismatch"},
	{model.ErrSubCategoryNeedsSub, "ErrSubCategoryNeedsSub"},
	{model.ErrSubCategoryNotFound, "ErrSubCategoryNotFound"},
	{model.ErrSubCategoryMismatch, "ErrSubCategoryMismatch"},
	{model.ErrSessionNotFound, "ErrSessionNotFound"},
	{model.ErrSessionFinalized, "ErrSessionFinalized"},
	{model.ErrNegativeScore, "ErrNegativeScore"},
	{model.ErrFallbackCorrupt, "ErrFallbackCorrupt"},
	{model.ErrGeneratorResponse, "ErrGeneratorResponse"},
	{model.ErrMarkerResponse, "ErrMarkerResponse"},
	{model.ErrInvalidCredentials, "ErrInvalidCredentials"},
	{model.ErrInvalidToken, "ErrInvalidToken"},
	{model.ErrPasswordMismatch, "ErrPasswordMismatch"},
	{model.ErrPasswordTooShort, "ErrPasswordTooShort"},
	{model.ErrEmailTaken, "ErrEmailTaken"},
	{model.ErrNotFound, "ErrNotFound"},
}

func statusFor(k model.Kind) int {
	switch k {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageID(err error) string {
	for _, m := range messageIDs {
		if errors.Is(err, m.err) {
			return m.id
		}
	}
	switch model.KindOf(err) {
	case model.KindNotFound:
		return "ErrNotFound"
	case model.KindExternal:
		return "ErrExternal"
	case model.KindValidation:
		return "ErrBadRequest"
	case model.KindUnauthorized:
		return "ErrInvalidToken"
	}
	return "ErrInternal"
}

type errorResponse struct {
	Error string     `json:"error"`
	Kind  model.Kind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError renders err as a localized JSON error. Internal failures are
// logged and never echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	switch {
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	default:
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	msg := appI18n.Td(r.Context(), messageID(err), map[string]any{"Max": h.config.MaxQuestions})
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.Validation(fmt.Errorf("%w: %v", errBadRequest, err))
	}
	return nil
}

// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/brandhub/internal/importer"
	"github.com/hitoshi/brandhub/internal/middleware"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/security"
)

// maxRequestBodyBytes はJSONリクエストボディの上限（1MB）。
const maxRequestBodyBytes = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// writeAPIErrorResponse は統一フォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 対象を特定できない未検出・重複エラーはここに来る前に各ハンドラーで変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
	case errors.Is(err, model.ErrDuplicateEmail):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateEmailError())
	case errors.Is(err, model.ErrRegistrationClosed):
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewRegistrationClosedError())
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, model.ErrMalformedToken), errors.Is(err, model.ErrTokenExpired):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	case errors.Is(err, model.ErrStoreUnavailable):
		slog.Error("store unavailable", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
	default:
		// 想定外のエラーは内部サーバーエラーとして扱う
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// handleSubscriberError は購読者操作のエラーを変換する。
func handleSubscriberError(w http.ResponseWriter, err error, email string) {
	switch {
	case errors.Is(err, model.ErrInvalidEmail):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError(email))
	case errors.Is(err, model.ErrNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSubscriberNotFoundError())
	default:
		handleServiceError(w, err)
	}
}

// handlePostError は記事操作のエラーを変換する。
func handlePostError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPostNotFoundError(id))
	case errors.Is(err, model.ErrDuplicatePost):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicatePostError(id))
	default:
		handleServiceError(w, err)
	}
}

// handleImportError はフィード取り込みのエラーを変換する。
func handleImportError(w http.ResponseWriter, err error, url string) {
	switch {
	case errors.Is(err, security.ErrBlockedDestination):
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
	case errors.Is(err, security.ErrInvalidURL):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(url))
	case errors.Is(err, importer.ErrFeedNotDetected):
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewFeedNotDetectedError(url))
	case errors.Is(err, importer.ErrFetchFailed):
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewFetchFailedError(url))
	case errors.Is(err, importer.ErrParseFailed):
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewParseFailedError())
	default:
		handlePostError(w, err, "")
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidEmail, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeRegistrationClosed, model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeSubscriberNotFound, model.ErrCodePostNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateEmail, model.ErrCodeDuplicatePost:
		return http.StatusConflict
	case model.ErrCodeFeedNotDetected, model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

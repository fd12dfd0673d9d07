package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gosecant "github.com/njchilds90/gosecant"
)

// Transport-level error kinds; engine failures use gosecant.Kind.
const (
	kindInvalidRequest  = "InvalidRequestError"
	kindRequestTooLarge = "RequestTooLargeError"
	kindTimeout         = "TimeoutError"
	kindInternal        = "InternalError"
)

var (
	errInvalidRequest  = errors.New("invalid request")
	errRequestTooLarge = errors.New("request too large")
)

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Kind:    kind,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return invalidRequestError("request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: request body exceeds %d bytes", errRequestTooLarge, maxBytesErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return invalidRequestError("request body is required")
		}
		return invalidRequestError(fmt.Sprintf("invalid JSON body: %v", err))
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidRequestError("request body must contain exactly one JSON object")
	}

	return nil
}

// mapError picks the status and kind for err. Input errors are 400; a
// stalled iteration is 422 since the request was well formed.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, errRequestTooLarge):
		return http.StatusRequestEntityTooLarge, kindRequestTooLarge
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, kindInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, kindTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, kindInternal
	}
	switch kind := gosecant.KindOf(err); kind {
	case gosecant.KindStalledIteration:
		return http.StatusUnprocessableEntity, string(kind)
	case gosecant.KindParse,
		gosecant.KindDomain,
		gosecant.KindInvalidArgument,
		gosecant.KindInvalidBracket,
		gosecant.KindUnsupportedOperation:
		return http.StatusBadRequest, string(kind)
	}
	return http.StatusInternalServerError, kindInternal
}

func invalidRequestError(message string) error {
	return fmt.Errorf("%w: %s", errInvalidRequest, message)
}

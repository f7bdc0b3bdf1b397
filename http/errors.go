package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"scorecast/artifact"
	"scorecast/db"
	"scorecast/ml"
)

const (
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// classify maps an error onto an HTTP status and a machine readable body.
// Inference is checked before storage because a missing artifact arrives
// as an InferenceError wrapping a StorageError.
func classify(err error) (int, errorBody) {
	var verr *ml.ValidationError
	var ierr *ml.InferenceError
	var serr *artifact.StorageError
	var merr *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Code: verr.Code(), Message: verr.Error(), Field: verr.Field}
	case errors.As(err, &ierr):
		return http.StatusInternalServerError, errorBody{Code: ierr.Code(), Message: ierr.Error()}
	case errors.As(err, &serr):
		return http.StatusInternalServerError, errorBody{Code: serr.Code(), Message: serr.Error()}
	case errors.As(err, &merr):
		return http.StatusRequestEntityTooLarge, errorBody{Code: CodeBadRequest, Message: err.Error()}
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: CodeNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	writeJSON(w, status, errorResponse{Error: body})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: CodeBadRequest, Message: message}})
}

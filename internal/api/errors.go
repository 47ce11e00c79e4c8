package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"installments/internal/engine"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// WriteEngineError maps engine error kinds onto HTTP statuses so handlers
// never switch on error kinds themselves.
func WriteEngineError(w http.ResponseWriter, err error) {
	var ee *engine.Error
	if errors.As(err, &ee) {
		switch ee.Kind {
		case engine.KindNotFound:
			WriteError(w, http.StatusNotFound, ee.Code, ee.Message)
		case engine.KindConflict:
			WriteError(w, http.StatusConflict, ee.Code, ee.Message)
		case engine.KindValidation:
			WriteError(w, http.StatusBadRequest, ee.Code, ee.Message)
		default:
			WriteError(w, http.StatusInternalServerError, ee.Code, ee.Message)
		}
		return
	}
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

package web

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope for every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSONResponse writes an envelope with the given status code.
func JSONResponse(w http.ResponseWriter, statusCode int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{
		Success: success,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse writes a failed envelope carrying message.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, false, nil, message)
}

// SuccessResponse writes a successful envelope carrying data.
func SuccessResponse(w http.ResponseWriter, statusCode int, data any, message string) {
	JSONResponse(w, statusCode, true, data, message)
}

package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, code string) APIResponse {
	return APIResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError renders err with the status code of its kind. Internal causes
// are never sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	WriteJSON(w, apperror.HTTPStatus(kind), ErrorResponse(apperror.PublicMessage(err), string(kind)))
}

// WriteRequestError is WriteError for handlers: internal errors are logged
// with the request line before the generic message goes out.
func WriteRequestError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		log.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	WriteError(w, err)
}

// DecodeJSON decodes the request body into dst, reporting malformed input
// as a validation error.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperror.Validation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.Validation("invalid request body: %v", err)
	}
	return nil
}

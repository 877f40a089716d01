package resp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nebulium/authcore/ecode"
)

// Exception represents the response structure.
type Exception struct {
	Status  int    `json:"status,omitempty"`  // HTTP status
	Code    string `json:"code,omitempty"`    // Business code
	Message string `json:"message,omitempty"` // Message
	Errors  any    `json:"errors,omitempty"`  // Validation errors
	Data    any    `json:"data,omitempty"`    // Response data
}

// Success handles success responses.
func Success(w http.ResponseWriter, data ...any) {
	WithStatusCode(w, http.StatusOK, data...)
}

// Accepted handles deliberately uniform 202 responses, used by flows that
// must not reveal whether the target account exists.
func Accepted(w http.ResponseWriter, message string) {
	writeResponse(w, http.StatusAccepted, map[string]any{"message": message})
}

// WithStatusCode handles success responses with custom status code.
func WithStatusCode(w http.ResponseWriter, statusCode int, data ...any) {
	var message string
	var responseData any

	if len(data) > 0 {
		responseData = data[0]
		if strData, ok := responseData.(string); ok {
			message = strData
			responseData = nil
		}
	}

	if responseData != nil {
		writeResponse(w, statusCode, responseData)
		return
	}
	if message == "" {
		message = "ok"
	}
	writeResponse(w, statusCode, map[string]any{"message": message})
}

// Fail handles failure responses.
func Fail(w http.ResponseWriter, r *Exception) {
	if r == nil {
		r = ServerError("")
	}
	if r.Code == "" {
		r.Code = ecode.RequestErr
	}
	if r.Status == 0 {
		r.Status = ecode.ToHTTPStatus(r.Code)
	}
	if r.Message == "" {
		r.Message = ecode.Text(r.Code)
	}

	writeResponse(w, r.Status, &Exception{
		Code:    r.Code,
		Message: r.Message,
		Errors:  r.Errors,
	})
}

// FromCode builds a failure response from a business code alone.
func FromCode(code string, errs ...any) *Exception {
	r := &Exception{
		Status:  ecode.ToHTTPStatus(code),
		Code:    code,
		Message: ecode.Text(code),
	}
	if len(errs) > 0 {
		r.Errors = errs[0]
	}
	return r
}

// BadRequest builds a 400 response.
func BadRequest(message string, errs ...any) *Exception {
	return withMessage(ecode.RequestErr, message, errs...)
}

// UnAuthorized builds a 401 response.
func UnAuthorized(message string, errs ...any) *Exception {
	return withMessage(ecode.AuthRequired, message, errs...)
}

// Forbidden builds a 403 response.
func Forbidden(message string, errs ...any) *Exception {
	return withMessage(ecode.PermissionDenied, message, errs...)
}

// NotFound builds a 404 response.
func NotFound(message string, errs ...any) *Exception {
	return withMessage(ecode.NotFound, message, errs...)
}

// Conflict builds a 409 response.
func Conflict(message string, errs ...any) *Exception {
	return withMessage(ecode.StateConflict, message, errs...)
}

// UnprocessableEntity builds a 422 response.
func UnprocessableEntity(message string, errs ...any) *Exception {
	return withMessage(ecode.ValidationFailed, message, errs...)
}

// Locked builds a 423 response for locked accounts. No remaining-attempt
// information is ever attached.
func Locked(message string) *Exception {
	return withMessage(ecode.AccountLocked, message)
}

// TooManyRequests builds a 429 response carrying a retry-after hint in
// seconds, mirrored in the Retry-After header by FailWithRetry.
func TooManyRequests(retryAfterSeconds int) *Exception {
	return &Exception{
		Status:  ecode.ToHTTPStatus(ecode.RateLimitExceeded),
		Code:    ecode.RateLimitExceeded,
		Message: ecode.Text(ecode.RateLimitExceeded),
		Errors:  map[string]any{"retry_after": retryAfterSeconds},
	}
}

// FailWithRetry writes a rate-limit failure with the Retry-After header set.
func FailWithRetry(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	Fail(w, TooManyRequests(retryAfterSeconds))
}

// ServerError builds a 500 response.
func ServerError(message string, errs ...any) *Exception {
	return withMessage(ecode.ServerErr, message, errs...)
}

func withMessage(code, message string, errs ...any) *Exception {
	r := FromCode(code, errs...)
	if message != "" {
		r.Message = message
	}
	return r
}

// writeResponse writes the JSON response with the given status code.
func writeResponse(w http.ResponseWriter, code int, res any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

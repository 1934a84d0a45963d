package errors

import stderrors "errors"

// ErrorResponse is the body the API sends for a failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the client-facing part of an AppError. Kind tells clients how
// the engine would treat the same failure inside a step.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Kind      Kind           `json:"kind"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse builds the API error body. The cause stays server side.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Kind:      KindOf(e),
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// IsAppError reports whether err wraps an *AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

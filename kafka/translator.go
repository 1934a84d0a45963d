package kafka

import (
	"net/http"

	apperrors "github.com/kbukum/pipeflow/errors"
)

// FromKafka converts a Kafka error to an AppError. Connection and transient
// broker errors stay retryable so the transition recorder keeps trying.
func FromKafka(err error, topic string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	if IsConnectionError(err) {
		return apperrors.ConnectionFailed("kafka").
			WithCause(err).
			WithDetail("topic", topic)
	}

	if IsNonRetryableError(err) {
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeInvalidInput,
			Message:    "Kafka rejected the message",
			HTTPStatus: http.StatusBadRequest,
			Retryable:  false,
			Details:    map[string]any{"topic": topic},
		}).WithCause(err)
	}

	if IsRetryableError(err) {
		return apperrors.ExternalServiceError("kafka", err).WithDetail("topic", topic)
	}

	return apperrors.Internal(err).WithDetail("topic", topic)
}

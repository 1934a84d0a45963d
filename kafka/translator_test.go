package kafka

import (
	"errors"
	"testing"

	apperrors "github.com/kbukum/pipeflow/errors"
)

func TestFromKafka(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{"connection", errors.New("dial tcp 10.0.0.1:9092: connection refused"), apperrors.ErrCodeConnectionFailed, true},
		{"too large", errors.New("message too large"), apperrors.ErrCodeInvalidInput, false},
		{"timed out", errors.New("request timed out"), apperrors.ErrCodeExternalService, true},
		{"unknown", errors.New("some unexpected error"), apperrors.ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromKafka(tt.err, "events")
			if got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestFromKafka_Nil(t *testing.T) {
	if appErr := FromKafka(nil, "topic"); appErr != nil {
		t.Error("expected nil for nil error")
	}
}

func TestFromKafka_TopicDetail(t *testing.T) {
	for _, msg := range []string{"broker not available", "unexpected EOF in frame"} {
		t.Run(msg, func(t *testing.T) {
			appErr := FromKafka(errors.New(msg), "events")
			if appErr.Details["topic"] != "events" {
				t.Errorf("Details[topic] = %v, want events", appErr.Details["topic"])
			}
		})
	}
}

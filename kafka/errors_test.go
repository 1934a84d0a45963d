package kafka

import (
	"errors"
	"fmt"
	"net"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name                            string
		err                             error
		connection, retryable, rejected bool
	}{
		{"nil", nil, false, false, false},
		{"unrelated", errors.New("something else"), false, false, false},
		{"refused", errors.New("dial tcp 127.0.0.1:9092: connection refused"), true, true, false},
		{"reset", errors.New("Connection Reset by peer"), true, true, false},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")}, true, true, false},
		{"broker down", kafkago.BrokerNotAvailable, true, true, false},
		{"wrapped broker code", fmt.Errorf("write: %w", kafkago.NetworkException), true, true, false},
		{"leader election", kafkago.LeaderNotAvailable, false, true, false},
		{"timed out", kafkago.RequestTimedOut, false, true, false},
		{"replicas", kafkago.NotEnoughReplicas, false, true, false},
		{"too large", kafkago.MessageSizeTooLarge, false, false, true},
		{"unknown topic", fmt.Errorf("write: %w", kafkago.UnknownTopicOrPartition), false, false, true},
		{"auth", kafkago.TopicAuthorizationFailed, false, false, true},
		{"too large text", errors.New("message too large"), false, false, true},
		{"temporary text", errors.New("temporary failure"), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.connection {
				t.Errorf("IsConnectionError = %v, want %v", got, tt.connection)
			}
			if got := IsRetryableError(tt.err); got != tt.retryable {
				t.Errorf("IsRetryableError = %v, want %v", got, tt.retryable)
			}
			if got := IsNonRetryableError(tt.err); got != tt.rejected {
				t.Errorf("IsNonRetryableError = %v, want %v", got, tt.rejected)
			}
		})
	}
}

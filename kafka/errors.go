package kafka

import (
	"errors"
	"net"
	"strings"

	"github.com/segmentio/kafka-go"
)

// rejected broker codes mean the message itself will never be accepted.
var rejected = map[kafka.Error]bool{
	kafka.MessageSizeTooLarge:      true,
	kafka.InvalidTopic:             true,
	kafka.UnknownTopicOrPartition:  true,
	kafka.TopicAuthorizationFailed: true,
	kafka.InvalidMessage:           true,
}

var dialPatterns = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"dial tcp",
	"i/o timeout",
}

func brokerCode(err error) (kafka.Error, bool) {
	var code kafka.Error
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

func mentions(err error, patterns ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError reports whether err comes from reaching the brokers
// rather than from a broker response.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := brokerCode(err); ok {
		return code == kafka.BrokerNotAvailable || code == kafka.NetworkException
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return mentions(err, dialPatterns...)
}

// IsNonRetryableError reports whether the brokers refused the message for
// good.
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := brokerCode(err); ok {
		return rejected[code]
	}
	return mentions(err, "message too large", "invalid topic", "unknown topic", "authorization failed")
}

// IsRetryableError reports whether resending the same message may succeed.
func IsRetryableError(err error) bool {
	if err == nil || IsNonRetryableError(err) {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	if code, ok := brokerCode(err); ok {
		return code.Temporary() || code.Timeout()
	}
	return mentions(err, "temporary", "timed out", "not enough replicas", "leader not available")
}

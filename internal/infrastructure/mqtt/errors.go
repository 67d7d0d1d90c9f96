package mqtt

import "errors"

// Sentinel errors for broker operations. Callers match them with
// errors.Is; most are wrapped with extra context at the call site.
var (
	// ErrNotConnected: the operation needs a live broker session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed: the initial CONNECT was refused or timed out.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed: the broker did not accept the message.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed covers both broker rejection and ack timeout.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed covers both broker rejection and ack timeout.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS: QoS must be 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic: empty topic strings are rejected before hitting paho.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)

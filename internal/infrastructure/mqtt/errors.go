package mqtt

import "errors"

var (
	// ErrNotConnected means the broker link is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed means the first connection could not be made.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrTimeout means the broker did not acknowledge in time.
	ErrTimeout = errors.New("mqtt: no acknowledgement")

	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)

package broker

import "errors"

var (
	// ErrBrokerUnavailable means the broker could not be reached after the
	// full retry schedule.
	ErrBrokerUnavailable = errors.New("broker: unavailable")

	// ErrAuthFailed means the broker refused the CONNECT.
	ErrAuthFailed = errors.New("broker: connection refused")

	// ErrSubscribeFailed means the broker rejected at least one subscription.
	ErrSubscribeFailed = errors.New("broker: subscribe rejected")

	// ErrPublishFailed means an outbound message was not accepted.
	ErrPublishFailed = errors.New("broker: publish failed")

	// ErrNotConnected means an operation ran on a client with no live session.
	ErrNotConnected = errors.New("broker: not connected")
)

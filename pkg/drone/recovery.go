package drone

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// RecoveryAction determines how to handle a tool endpoint operation
// failure.
type RecoveryAction int

const (
	NoRetry RecoveryAction = iota
	RetryNewSession
)

// ClassifyError decides whether a failed call is worth a single retry
// against a freshly recreated session.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry
		}
		return RetryNewSession
	}

	if isConnectionError(err) {
		return RetryNewSession
	}
	return NoRetry
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, candidate := range []string{"connection refused", "connection reset", "broken pipe", "connection closed"} {
		if strings.Contains(msg, candidate) {
			return true
		}
	}
	return false
}

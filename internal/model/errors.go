package model

import (
	"errors"
	"fmt"
)

// Control-flow sentinels. These replace non-local jumps: they travel up
// through ordinary error returns and only the top-level run loop (or the
// request layer, for ErrRequestInvalid) reacts to them.
var (
	// ErrExitRequest means the user asked the miner to terminate.
	ErrExitRequest = errors.New("exit requested")
	// ErrReloadRequest asks the top-level run loop to restart the miner.
	ErrReloadRequest = errors.New("reload requested")
	// ErrRequestInvalid means a credential used by an in-flight request
	// expired; the caller re-fetches the credential and retries.
	ErrRequestInvalid = errors.New("request invalidated")
)

// MinerError is a fatal inconsistency: a GQL error, a merge conflict, an
// unexpected payload. It surfaces to the top-level run and exits non-zero.
type MinerError struct {
	Msg string
	Err error
}

// Minerf builds a MinerError from a format string. If the last argument is
// an error it is kept as the wrapped cause.
func Minerf(format string, args ...any) *MinerError {
	e := &MinerError{Msg: fmt.Sprintf(format, args...)}
	if len(args) > 0 {
		if cause, ok := args[len(args)-1].(error); ok {
			e.Err = cause
		}
	}
	return e
}

func (e *MinerError) Error() string {
	return e.Msg
}

func (e *MinerError) Unwrap() error {
	return e.Err
}

// WebsocketClosedError reports a closed PubSub transport. Received tells
// whether the remote closed the socket (reconnect) or the local side did.
type WebsocketClosedError struct {
	Received bool
}

func (e *WebsocketClosedError) Error() string {
	if e.Received {
		return "websocket closed by remote"
	}
	return "websocket closed"
}

// LoginError means the supplied credentials are wrong or unusable.
type LoginError struct {
	Msg string
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Msg
}

// CaptchaError means the platform demands a captcha the non-interactive
// device-code flow cannot satisfy.
type CaptchaError struct{}

func (e *CaptchaError) Error() string {
	return "captcha solving required"
}

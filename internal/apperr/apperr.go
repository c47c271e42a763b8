// Package apperr registers the application's own error codes in the
// range the errors package reserves for code outside its own modules
// (errors.MinAvailable), following the same CodeError/RegisterIdFctMessage
// pattern every pkg/* package uses for its own error space.
//
// Codes are grouped in hundred-blocks by failure kind: protocol framing
// and decode errors, session state-machine violations, sink I/O
// failures, relay/transport failures, and fatal startup configuration
// errors.
package apperr

import (
	liberr "github.com/mustafacco7/sudoauditd/pkg/errors"
)

const (
	ErrProtocolFraming liberr.CodeError = iota + liberr.MinAvailable
	ErrProtocolOversize
	ErrProtocolMalformed
)

const (
	ErrSessionIllegalMessage liberr.CodeError = iota + liberr.MinAvailable + 100
	ErrSessionAlreadyTerminal
)

const (
	ErrSinkWrite liberr.CodeError = iota + liberr.MinAvailable + 200
	ErrSinkOpen
)

const (
	ErrRelayDial liberr.CodeError = iota + liberr.MinAvailable + 300
	ErrRelayClosed
)

const (
	ErrStartupNoListener liberr.CodeError = iota + liberr.MinAvailable + 400
	ErrStartupConfig
)

func init() {
	liberr.RegisterIdFctMessage(ErrProtocolFraming, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrProtocolFraming:
		return "malformed wire frame"
	case ErrProtocolOversize:
		return "client message too large"
	case ErrProtocolMalformed:
		return "malformed message body"
	case ErrSessionIllegalMessage:
		return "state machine error"
	case ErrSessionAlreadyTerminal:
		return "session already in a terminal state"
	case ErrSinkWrite:
		return "sink write failed"
	case ErrSinkOpen:
		return "sink open failed"
	case ErrRelayDial:
		return "relay dial failed"
	case ErrRelayClosed:
		return "relay connection closed"
	case ErrStartupNoListener:
		return "no listener could be created"
	case ErrStartupConfig:
		return "invalid server configuration"
	}

	return ""
}

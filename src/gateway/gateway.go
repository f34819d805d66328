// Package gateway speaks the platform's WebSocket event stream: the envelope
// codec, intents, and the Session that drives one connection from handshake to
// close.
package gateway

import (
	"errors"
	"fmt"
)

const (
	// Version is the gateway protocol version requested on connect and sent in Identify.
	Version = 9

	Encoding = "json"
)

// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-close-event-codes
type GatewayCloseEventCode = int

const (
	UnknownError         GatewayCloseEventCode = 4000
	UnknownOpcode        GatewayCloseEventCode = 4001
	DecodeError          GatewayCloseEventCode = 4002
	NotAuthenticated     GatewayCloseEventCode = 4003
	AuthenticationFailed GatewayCloseEventCode = 4004
	AlreadyAuthenticated GatewayCloseEventCode = 4005
	InvalidSeq           GatewayCloseEventCode = 4007
	RateLimited          GatewayCloseEventCode = 4008
	SessionTimedOut      GatewayCloseEventCode = 4009
	InvalidShard         GatewayCloseEventCode = 4010
	ShardingRequired     GatewayCloseEventCode = 4011
	InvalidAPIVersion    GatewayCloseEventCode = 4012
	InvalidIntents       GatewayCloseEventCode = 4013
	DisallowedIntents    GatewayCloseEventCode = 4014
)

var (
	ErrUnknown              = errors.New("unknown error")
	ErrUnknownOpcode        = errors.New("unknown opcode")
	ErrDecode               = errors.New("invalid payload")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrInvalidSeq           = errors.New("invalid sequence")
	ErrRateLimited          = errors.New("rate limited")
	ErrSessionTimedOut      = errors.New("session timed out")
	ErrInvalidShard         = errors.New("invalid shard")
	ErrShardingRequired     = errors.New("sharding required")
	ErrInvalidAPIVersion    = errors.New("invalid api version")
	ErrInvalidIntents       = errors.New("invalid intents")
	ErrDisallowedIntents    = errors.New("disallowed intent. you may have tried to specify an intent that you have not enabled")

	ErrSessionStarted = errors.New("gateway session already started")
	ErrNotConnected   = errors.New("gateway session is not connected")
)

var closeCodeErrors = map[GatewayCloseEventCode]error{
	UnknownError:         ErrUnknown,
	UnknownOpcode:        ErrUnknownOpcode,
	DecodeError:          ErrDecode,
	NotAuthenticated:     ErrNotAuthenticated,
	AuthenticationFailed: ErrAuthenticationFailed,
	AlreadyAuthenticated: ErrAlreadyAuthenticated,
	InvalidSeq:           ErrInvalidSeq,
	RateLimited:          ErrRateLimited,
	SessionTimedOut:      ErrSessionTimedOut,
	InvalidShard:         ErrInvalidShard,
	ShardingRequired:     ErrShardingRequired,
	InvalidAPIVersion:    ErrInvalidAPIVersion,
	InvalidIntents:       ErrInvalidIntents,
	DisallowedIntents:    ErrDisallowedIntents,
}

// CloseEventError describes the Close frame the server ended a session with.
// It unwraps to the sentinel for platform close codes.
type CloseEventError struct {
	Code   int
	Reason string
}

func (e *CloseEventError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway closed with code %d", e.Code)
	}
	return fmt.Sprintf("gateway closed with code %d: %s", e.Code, e.Reason)
}

func (e *CloseEventError) Unwrap() error {
	return closeCodeErrors[e.Code]
}

// ProtocolError is a frame the session cannot continue from.
type ProtocolError struct {
	Op  Opcode
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

type Opcode int

// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-opcodes
const (
	OpcodeDispatch                Opcode = 0
	OpcodeHeartbeat               Opcode = 1
	OpcodeIdentify                Opcode = 2
	OpcodePresenceUpdate          Opcode = 3
	OpcodeVoiceStateUpdate        Opcode = 4
	OpcodeResume                  Opcode = 6
	OpcodeReconnect               Opcode = 7
	OpcodeRequestGuildMember      Opcode = 8
	OpcodeInvalidSession          Opcode = 9
	OpcodeHello                   Opcode = 10
	OpcodeHeartbeatAck            Opcode = 11
	OpcodeRequestSoundboardSounds Opcode = 31
)

func (o Opcode) String() string {
	switch o {
	case OpcodeDispatch:
		return "DISPATCH"
	case OpcodeHeartbeat:
		return "HEARTBEAT"
	case OpcodeIdentify:
		return "IDENTIFY"
	case OpcodePresenceUpdate:
		return "PRESENCE_UPDATE"
	case OpcodeVoiceStateUpdate:
		return "VOICE_STATE_UPDATE"
	case OpcodeResume:
		return "RESUME"
	case OpcodeReconnect:
		return "RECONNECT"
	case OpcodeRequestGuildMember:
		return "REQUEST_GUILD_MEMBERS"
	case OpcodeInvalidSession:
		return "INVALID_SESSION"
	case OpcodeHello:
		return "HELLO"
	case OpcodeHeartbeatAck:
		return "HEARTBEAT_ACK"
	case OpcodeRequestSoundboardSounds:
		return "REQUEST_SOUNDBOARD_SOUNDS"
	default:
		return fmt.Sprintf("OPCODE_%d", int(o))
	}
}

var ErrMalformedEnvelope = errors.New("malformed gateway envelope")

// Envelope is one gateway message: {"op", "d", "s", "t"}.
// S and T are nil when the field is absent (or null) on the wire, D is nil when
// absent. A present null payload is kept as the literal "null".
type Envelope struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  *string         `json:"t,omitempty"`
}

// wireEnvelope exists to detect a missing op on decode.
type wireEnvelope struct {
	Op *Opcode         `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
}

// NewEnvelope marshals payload into the d field. A nil payload is sent as null.
func NewEnvelope(op Opcode, payload any) (Envelope, error) {
	d, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	return Envelope{Op: op, D: d}, nil
}

// EncodeEnvelope serializes e for the wire.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway event: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses one inbound frame. Input that is not a JSON object with
// an integer op is rejected with ErrMalformedEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if decoder.More() {
		return Envelope{}, fmt.Errorf("%w: trailing data after envelope", ErrMalformedEnvelope)
	}
	if w.Op == nil {
		return Envelope{}, fmt.Errorf("%w: missing op", ErrMalformedEnvelope)
	}
	return Envelope{Op: *w.Op, D: w.D, S: w.S, T: w.T}, nil
}

func (e Envelope) Sequence() (int64, bool) {
	if e.S == nil {
		return 0, false
	}
	return *e.S, true
}

func (e Envelope) EventName() (string, bool) {
	if e.T == nil {
		return "", false
	}
	return *e.T, true
}

// DecodePayload unmarshals d into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.D) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Op)
	}
	return json.Unmarshal(e.D, v)
}

func (e Envelope) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("op_code", int(e.Op)),
		slog.String("op", e.Op.String()),
	}
	if e.S != nil {
		attrs = append(attrs, slog.Int64("sequence", *e.S))
	}
	if e.T != nil {
		attrs = append(attrs, slog.String("event_name", *e.T))
	}
	return slog.GroupValue(attrs...)
}

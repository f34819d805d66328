// Package events defines the domain events produced from gateway dispatches.
//
// An Event is one of the concrete types below; consumers switch on the type:
//
//	switch e := ev.(type) {
//	case events.MessageCreated:
//		fmt.Println(e.Message.Content)
//	case events.ChannelDeleted:
//		...
//	}
package events

import (
	"encoding/json"
	"fmt"

	"github.com/hendrywilliam/tether/src/structs"
)

type EventName = string

const (
	EventNameReady         EventName = "READY"
	EventNameGuildCreate   EventName = "GUILD_CREATE"
	EventNameMessageCreate EventName = "MESSAGE_CREATE"
	EventNameMessageUpdate EventName = "MESSAGE_UPDATE"
	EventNameMessageDelete EventName = "MESSAGE_DELETE"
	EventNameChannelCreate EventName = "CHANNEL_CREATE"
	EventNameChannelUpdate EventName = "CHANNEL_UPDATE"
	EventNameChannelDelete EventName = "CHANNEL_DELETE"
)

type Kind int

const (
	KindUnrecognized Kind = iota
	KindInit
	KindReady
	KindGuildCreated
	KindMessageCreated
	KindMessageUpdated
	KindMessageDeleted
	KindChannelCreated
	KindChannelUpdated
	KindChannelDeleted
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindReady:
		return "ready"
	case KindGuildCreated:
		return "guild_created"
	case KindMessageCreated:
		return "message_created"
	case KindMessageUpdated:
		return "message_updated"
	case KindMessageDeleted:
		return "message_deleted"
	case KindChannelCreated:
		return "channel_created"
	case KindChannelUpdated:
		return "channel_updated"
	case KindChannelDeleted:
		return "channel_deleted"
	default:
		return "unrecognized"
	}
}

type Event interface {
	Kind() Kind
}

// Init is published once the gateway socket is open, before the handshake.
type Init struct{}

type Ready struct {
	Ready structs.ReadyEvent
}

type GuildCreated struct {
	Guild structs.GuildCreate
}

type MessageCreated struct {
	Message structs.Message
}

type MessageUpdated struct {
	Message structs.Message
}

type MessageDeleted struct {
	Message structs.Message
}

type ChannelCreated struct {
	Channel structs.Channel
}

type ChannelUpdated struct {
	Channel structs.Channel
}

type ChannelDeleted struct {
	Channel structs.Channel
}

// Unrecognized carries a dispatch whose name is not one we decode.
type Unrecognized struct {
	Name string
	Data json.RawMessage
}

func (Init) Kind() Kind           { return KindInit }
func (Ready) Kind() Kind          { return KindReady }
func (GuildCreated) Kind() Kind   { return KindGuildCreated }
func (MessageCreated) Kind() Kind { return KindMessageCreated }
func (MessageUpdated) Kind() Kind { return KindMessageUpdated }
func (MessageDeleted) Kind() Kind { return KindMessageDeleted }
func (ChannelCreated) Kind() Kind { return KindChannelCreated }
func (ChannelUpdated) Kind() Kind { return KindChannelUpdated }
func (ChannelDeleted) Kind() Kind { return KindChannelDeleted }
func (Unrecognized) Kind() Kind   { return KindUnrecognized }

// Decode maps a dispatch name to its variant and decodes data into that
// variant's shape. Unknown names yield Unrecognized and no error; a known name
// whose payload does not fit the shape returns an error.
func Decode(name string, data json.RawMessage) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch name {
	case EventNameReady:
		var r structs.ReadyEvent
		err = json.Unmarshal(data, &r)
		ev = Ready{Ready: r}
	case EventNameGuildCreate:
		var g structs.GuildCreate
		err = json.Unmarshal(data, &g)
		ev = GuildCreated{Guild: g}
	case EventNameMessageCreate, EventNameMessageUpdate, EventNameMessageDelete:
		var m structs.Message
		err = json.Unmarshal(data, &m)
		switch name {
		case EventNameMessageCreate:
			ev = MessageCreated{Message: m}
		case EventNameMessageUpdate:
			ev = MessageUpdated{Message: m}
		default:
			ev = MessageDeleted{Message: m}
		}
	case EventNameChannelCreate, EventNameChannelUpdate, EventNameChannelDelete:
		var c structs.Channel
		err = json.Unmarshal(data, &c)
		switch name {
		case EventNameChannelCreate:
			ev = ChannelCreated{Channel: c}
		case EventNameChannelUpdate:
			ev = ChannelUpdated{Channel: c}
		default:
			ev = ChannelDeleted{Channel: c}
		}
	default:
		return Unrecognized{Name: name, Data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return ev, nil
}

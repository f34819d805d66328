package structs

// Represent a message sent in a channel within Discord.
// https://discord.com/developers/docs/resources/message
type MessageType = uint8

const (
	MessageTypeDefault                                 MessageType = 0
	MessageTypeRecipientAdd                            MessageType = 1
	MessageTypeRecipientRemove                         MessageType = 2
	MessageTypeCall                                    MessageType = 3
	MessageTypeChannelNameChange                       MessageType = 4
	MessageTypeChannelIconChange                       MessageType = 5
	MessageTypeChannelPinnedMessage                    MessageType = 6
	MessageTypeGuildMemberJoin                         MessageType = 7
	MessageTypeUserPremiumGuildSubscription            MessageType = 8
	MessageTypeUserPremiumGuildSubscriptionTier1       MessageType = 9
	MessageTypeUserPremiumGuildSubscriptionTier2       MessageType = 10
	MessageTypeUserPremiumGuildSubscriptionTier3       MessageType = 11
	MessageTypeChannelFollowAdd                        MessageType = 12
	MessageTypeGuildDiscoveryDisqualified              MessageType = 14
	MessageTypeGuildDiscoveryRequalified               MessageType = 15
	MessageTypeGuildDiscoveryGracePeriodInitialWarning MessageType = 16
	MessageTypeGuildDiscoveryGracePeriodFinalWarning   MessageType = 17
	MessageTypeThreadCreated                           MessageType = 18
	MessageTypeReply                                   MessageType = 19
	MessageTypeChatInputCommand                        MessageType = 20
	MessageTypeThreadStarterMessage                    MessageType = 21
	MessageTypeGuildInviteReminder                     MessageType = 22
	MessageTypeContextMenuCommand                      MessageType = 23
)

type MessageReference struct {
	MessageID       *Snowflake `json:"message_id,omitempty"`
	ChannelID       *Snowflake `json:"channel_id,omitempty"`
	GuildID         *Snowflake `json:"guild_id,omitempty"`
	FailIfNotExists *bool      `json:"fail_if_not_exists,omitempty"`
}

// Message covers both full MESSAGE_CREATE payloads and the partial ones sent with
// MESSAGE_UPDATE and MESSAGE_DELETE, so most fields are optional.
type Message struct {
	ID                Snowflake         `json:"id"`
	Type              MessageType       `json:"type"`
	ChannelID         *Snowflake        `json:"channel_id,omitempty"`
	GuildID           *Snowflake        `json:"guild_id,omitempty"`
	Author            *User             `json:"author,omitempty"`
	Content           string            `json:"content"`
	Timestamp         string            `json:"timestamp,omitempty"`
	EditedTimestamp   *string           `json:"edited_timestamp,omitempty"`
	TTS               bool              `json:"tts"`
	MentionEveryone   bool              `json:"mention_everyone"`
	Mentions          []User            `json:"mentions,omitempty"`
	MentionRoles      []Snowflake       `json:"mention_roles,omitempty"`
	Nonce             any               `json:"nonce,omitempty"` // string or integer on the wire.
	MessageReference  *MessageReference `json:"message_reference,omitempty"`
	ReferencedMessage *Message          `json:"referenced_message,omitempty"`
}

// CreateMessageData is the body of POST /channels/{channel.id}/messages.
type CreateMessageData struct {
	Content          string            `json:"content"`
	TTS              bool              `json:"tts"`
	Nonce            any               `json:"nonce,omitempty"` // Use nonce to verify a message was sent.
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

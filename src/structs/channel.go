package structs

// https://discord.com/developers/docs/resources/channel#channel-object-channel-types
type ChannelType = uint8

const (
	ChannelTypeGuildText          ChannelType = 0
	ChannelTypeDM                 ChannelType = 1
	ChannelTypeGuildVoice         ChannelType = 2
	ChannelTypeGroupDM            ChannelType = 3
	ChannelTypeGuildCategory      ChannelType = 4
	ChannelTypeGuildNews          ChannelType = 5
	ChannelTypeGuildStore         ChannelType = 6
	ChannelTypeGuildNewsThread    ChannelType = 10
	ChannelTypeGuildPublicThread  ChannelType = 11
	ChannelTypeGuildPrivateThread ChannelType = 12
	ChannelTypeGuildStageVoice    ChannelType = 13
)

type Hash struct {
	Hash string `json:"hash"`
}

type GuildHashes struct {
	Channels Hash `json:"channels"`
	Metadata Hash `json:"metadata"`
	Roles    Hash `json:"roles"`
	Version  int  `json:"version"`
}

type Channel struct {
	ID            Snowflake    `json:"id"`
	Type          ChannelType  `json:"type"`
	Name          string       `json:"name"`
	Position      int          `json:"position"`
	Topic         *string      `json:"topic,omitempty"`
	ParentID      *Snowflake   `json:"parent_id,omitempty"`
	LastMessageID *Snowflake   `json:"last_message_id,omitempty"`
	GuildID       *Snowflake   `json:"guild_id,omitempty"`
	GuildHashes   *GuildHashes `json:"guild_hashes,omitempty"`
}

// GuildChannelCreate is the body of POST /guilds/{guild.id}/channels.
type GuildChannelCreate struct {
	Type             ChannelType `json:"type"`
	Name             string      `json:"name"`
	Topic            *string     `json:"topic,omitempty"`
	Bitrate          *int        `json:"bitrate,omitempty"`
	UserLimit        *int        `json:"user_limit,omitempty"`
	RateLimitPerUser int         `json:"rate_limit_per_user"`
	Position         int         `json:"position"`
	ParentID         *Snowflake  `json:"parent_id,omitempty"`
	NSFW             bool        `json:"nsfw"`
}

func NewGuildChannelCreate(channelType ChannelType, name string, topic *string, parentID *Snowflake) GuildChannelCreate {
	return GuildChannelCreate{
		Type:     channelType,
		Name:     name,
		Topic:    topic,
		ParentID: parentID,
	}
}

// ChannelPatch is the body of PATCH /channels/{channel.id}. Nil fields are left untouched.
type ChannelPatch struct {
	Name     *string    `json:"name,omitempty"`
	Topic    *string    `json:"topic,omitempty"`
	Position *int       `json:"position,omitempty"`
	ParentID *Snowflake `json:"parent_id,omitempty"`
	NSFW     *bool      `json:"nsfw,omitempty"`
}

package structs

// https://discord.com/developers/docs/resources/guild
type Guild struct {
	ID      Snowflake `json:"id"`
	Name    *string   `json:"name,omitempty"`
	OwnerID Snowflake `json:"owner_id"`
}

// GuildCreate is the GUILD_CREATE dispatch payload. Only the fields we act on are decoded.
type GuildCreate struct {
	ID       Snowflake `json:"id"`
	Name     *string   `json:"name,omitempty"`
	OwnerID  Snowflake `json:"owner_id"`
	Channels []Channel `json:"channels"`
}
